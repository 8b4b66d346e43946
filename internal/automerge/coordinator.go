// Package automerge merges pull requests when the CI checks or statuses for
// them succeeded.
//
// A run processes a single CI event. The event is classified to determine the
// candidate pull requests, either a single pull request that the event
// references or the open pull requests of the branches the event is for.
// Each candidate is merged if GitHub reports its mergeable state as clean.
// Pull requests with a single commit are squashed, pull requests with
// multiple commits are merged with a merge commit.
package automerge

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/simplesurance/automerger/internal/amerr"
	"github.com/simplesurance/automerger/internal/githubclt"
	"github.com/simplesurance/automerger/internal/logfields"
)

const loggerName = "merge_coordinator"

//go:generate mockgen -destination mocks/mock_githubclient.go -package mocks . GithubClient

// GithubClient is the subset of githubclt.Client operations that are needed
// to merge pull requests.
type GithubClient interface {
	PullRequest(ctx context.Context, owner, repo string, number int) (*githubclt.PullRequest, error)
	PullRequestCommits(ctx context.Context, owner, repo string, number int) ([]*githubclt.Commit, error)
	ListOpenPullRequestsByHead(ctx context.Context, owner, repo, branch string) ([]*githubclt.PullRequest, error)
	MergePullRequest(ctx context.Context, owner, repo string, number int, method githubclt.MergeMethod, title, message string) error
}

// Repository identifies the GitHub repository that events are processed for.
type Repository struct {
	Owner string
	Name  string
}

func (r *Repository) String() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Name)
}

// Coordinator determines for CI events which pull requests can be merged and
// merges them.
type Coordinator struct {
	clt     GithubClient
	repo    Repository
	filter  *EventFilter
	metrics *Metrics
	logger  *zap.Logger
}

// WithEventFilter sets a filter, events that do not match it are ignored.
func WithEventFilter(filter *EventFilter) func(*Coordinator) {
	return func(c *Coordinator) {
		c.filter = filter
	}
}

// WithMetrics sets the collector that records the results of the run.
func WithMetrics(m *Metrics) func(*Coordinator) {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

func New(clt GithubClient, repo Repository, opts ...func(*Coordinator)) *Coordinator {
	c := Coordinator{
		clt:  clt,
		repo: repo,
	}

	for _, opt := range opts {
		opt(&c)
	}

	if c.metrics == nil {
		c.metrics = NewMetrics()
	}

	if c.logger == nil {
		c.logger = zap.L().Named(loggerName).With(
			logfields.RepositoryOwner(repo.Owner),
			logfields.Repository(repo.Name),
		)
	}

	return &c
}

// Run processes an event.
// Events of unsupported kinds and events that do not match the event filter
// are ignored.
//
// When the event references a single pull request, errors that happen while
// merging it are returned.
// When the candidates are resolved from branches, errors for individual pull
// requests are logged and the remaining candidates are processed, nil is
// returned.
// If the event filter can not be evaluated an amerr.ConfigError is returned.
func (c *Coordinator) Run(ctx context.Context, ev *Event) error {
	logger := c.logger.With(ev.LogFields...)

	logger.Debug(
		"processing event",
		logEventProcessing,
		logfields.EventKind(ev.Name),
	)

	c.metrics.ProcessedEventsInc(ev.Kind)

	if ev.Kind == EventKindUnsupported {
		logger.Debug("ignoring event, event kind is unsupported", logEventEventIgnored)
		return nil
	}

	if c.filter != nil {
		match, err := c.filter.Match(ctx, ev.JSON)
		if err != nil {
			return amerr.NewConfigErrorf("evaluating event filter %q failed: %w", c.filter, err)
		}

		if !match {
			logger.Info(
				"ignoring event, it does not match the event filter",
				logEventEventIgnored,
				zap.Stringer("event_filter", c.filter),
			)

			return nil
		}
	}

	classification, err := Classify(ev)
	if err != nil {
		if amerr.IsContextError(err) {
			logger.Error(
				"event can not be processed",
				logEventMissingContext,
				zap.Error(err),
			)

			return nil
		}

		return err
	}

	if !classification.HasCandidates() {
		logger.Debug(
			"event has no candidate pull requests",
			logEventNoCandidates,
			logfields.Reason(classification.NoopReason),
		)

		return nil
	}

	if classification.PullRequest != 0 {
		logger.Debug(
			"candidate pull requests determined",
			logEventCandidates,
			logfields.PullRequests([]int{classification.PullRequest}),
		)

		c.metrics.CandidatesAdd(1)

		return c.MergeIfClean(ctx, classification.PullRequest)
	}

	candidates := c.pullRequestsForBranches(ctx, logger, classification.Branches)

	logger.Debug(
		"candidate pull requests determined",
		logEventCandidates,
		zap.Strings("git.branches", classification.Branches),
		logfields.PullRequests(candidates),
	)

	c.metrics.CandidatesAdd(len(candidates))

	for _, prNumber := range candidates {
		if err := c.MergeIfClean(ctx, prNumber); err != nil {
			logger.Error(
				"processing pull request failed",
				logEventMergeFailed,
				logfields.PullRequest(prNumber),
				zap.Error(err),
			)
		}
	}

	return nil
}

// pullRequestsForBranches returns the numbers of the open pull requests of
// the given head branches.
// Per branch the pull requests are ordered by their last update time, the
// most recent one first.
// If looking up the pull requests for a branch fails, the error is logged and
// the branch is skipped.
func (c *Coordinator) pullRequestsForBranches(ctx context.Context, logger *zap.Logger, branches []string) []int {
	var result []int

	for _, branch := range branches {
		prs, err := c.clt.ListOpenPullRequestsByHead(ctx, c.repo.Owner, c.repo.Name, branch)
		if err != nil {
			logger.Error(
				"looking up pull requests for branch failed",
				logEventPRLookupFailed,
				logfields.Branch(branch),
				zap.Error(err),
			)

			continue
		}

		for _, pr := range prs {
			result = append(result, pr.Number)
		}
	}

	return result
}

// MergeIfClean merges the pull request if its mergeable state is clean.
// If it is not clean, nil is returned without merging it.
func (c *Coordinator) MergeIfClean(ctx context.Context, prNumber int) error {
	err := c.mergeIfClean(ctx, prNumber)
	if err != nil {
		c.metrics.mergeDecisionInc(resultLabelFailedVal)
		return fmt.Errorf("pull request #%d: %w", prNumber, err)
	}

	return nil
}

func (c *Coordinator) mergeIfClean(ctx context.Context, prNumber int) error {
	logger := c.logger.With(logfields.PullRequest(prNumber))

	pr, err := c.clt.PullRequest(ctx, c.repo.Owner, c.repo.Name, prNumber)
	if err != nil {
		return fmt.Errorf("fetching pull request failed: %w", err)
	}

	if pr.MergeableState != githubclt.MergeableStateClean {
		logger.Debug(
			"skipping pull request, mergeable state is not clean",
			logEventMergeSkipped,
			logfields.MergeableState(pr.MergeableState),
		)

		c.metrics.mergeDecisionInc(resultLabelSkippedNotCleanVal)

		return nil
	}

	commits, err := c.clt.PullRequestCommits(ctx, c.repo.Owner, c.repo.Name, prNumber)
	if err != nil {
		return fmt.Errorf("fetching commits failed: %w", err)
	}

	msg, err := NewMergeMessage(pr, commits)
	if err != nil {
		return err
	}

	err = c.clt.MergePullRequest(ctx, c.repo.Owner, c.repo.Name, prNumber, msg.Method, msg.Title, msg.Body)
	if err != nil {
		return fmt.Errorf("merging failed: %w", err)
	}

	logger.Info(
		"pull request merged",
		logEventMerged,
		logfields.MergeMethod(string(msg.Method)),
		zap.String("commit_title", msg.Title),
		zap.Int("commit_count", len(commits)),
	)

	c.metrics.mergeDecisionInc(resultLabelMergedVal)

	return nil
}
