package automerge

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/simplesurance/automerger/internal/amerr"
	"github.com/simplesurance/automerger/internal/automerge/mocks"
	"github.com/simplesurance/automerger/internal/githubclt"
)

const repo = "repo"
const repoOwner = "testman"

func newTestCoordinator(t *testing.T, clt GithubClient, opts ...func(*Coordinator)) *Coordinator {
	t.Helper()

	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	return New(clt, Repository{Owner: repoOwner, Name: repo}, opts...)
}

func mockPullRequestCall(clt *mocks.MockGithubClient, prNumber int, mergeableState string) *gomock.Call {
	return clt.
		EXPECT().
		PullRequest(gomock.Any(), gomock.Eq(repoOwner), gomock.Eq(repo), gomock.Eq(prNumber)).
		Return(&githubclt.PullRequest{
			Number:         prNumber,
			Title:          "Add feature",
			Body:           "Does X",
			MergeableState: mergeableState,
		}, nil).
		Times(1)
}

func mockPullRequestCommitsCall(clt *mocks.MockGithubClient, prNumber int, commits ...*githubclt.Commit) *gomock.Call {
	return clt.
		EXPECT().
		PullRequestCommits(gomock.Any(), gomock.Eq(repoOwner), gomock.Eq(repo), gomock.Eq(prNumber)).
		Return(commits, nil).
		Times(1)
}

func mockSuccessfulMergeCall(clt *mocks.MockGithubClient, prNumber int) *gomock.Call {
	return clt.
		EXPECT().
		MergePullRequest(gomock.Any(), gomock.Eq(repoOwner), gomock.Eq(repo), gomock.Eq(prNumber), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil).
		Times(1)
}

func mockListOpenPullRequestsByHeadCall(clt *mocks.MockGithubClient, branch string, prNumbers ...int) *gomock.Call {
	prs := make([]*githubclt.PullRequest, 0, len(prNumbers))
	for _, nr := range prNumbers {
		prs = append(prs, &githubclt.PullRequest{Number: nr, Branch: branch})
	}

	return clt.
		EXPECT().
		ListOpenPullRequestsByHead(gomock.Any(), gomock.Eq(repoOwner), gomock.Eq(repo), gomock.Eq(branch)).
		Return(prs, nil).
		Times(1)
}

func pullRequestEvent(prNumber int) *Event {
	return &Event{
		Kind:    EventKindPullRequest,
		Name:    EventKindPullRequest.String(),
		Payload: &PullRequestPayload{EventKind: EventKindPullRequest, Number: prNumber},
		JSON:    []byte(`{"action": "labeled", "number": 42}`),
	}
}

func TestSingleCommitPullRequestIsSquashed(t *testing.T) {
	mockctrl := gomock.NewController(t)
	clt := mocks.NewMockGithubClient(mockctrl)

	mockPullRequestCall(clt, 42, githubclt.MergeableStateClean)
	mockPullRequestCommitsCall(clt, 42, &githubclt.Commit{
		AuthorName:  "Alice",
		AuthorEmail: "a@x.com",
		Message:     "Fix bug\n\nDetails here",
	})
	clt.
		EXPECT().
		MergePullRequest(
			gomock.Any(),
			gomock.Eq(repoOwner),
			gomock.Eq(repo),
			gomock.Eq(42),
			gomock.Eq(githubclt.MergeMethodSquash),
			gomock.Eq("Fix bug (#42)"),
			gomock.Eq("\n\nDetails here"),
		).
		Return(nil).
		Times(1)

	metrics := NewMetrics()
	c := newTestCoordinator(t, clt, WithMetrics(metrics))

	err := c.Run(context.Background(), pullRequestEvent(42))
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.mergeDecisions.WithLabelValues(string(resultLabelMergedVal))))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.candidates))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.processedEvents.WithLabelValues("pull_request")))
}

func TestMultiCommitPullRequestIsMerged(t *testing.T) {
	mockctrl := gomock.NewController(t)
	clt := mocks.NewMockGithubClient(mockctrl)

	mockPullRequestCall(clt, 7, githubclt.MergeableStateClean)
	mockPullRequestCommitsCall(clt, 7,
		&githubclt.Commit{AuthorName: "Alice", AuthorEmail: "a@x.com", Message: "one"},
		&githubclt.Commit{AuthorName: "Bob", AuthorEmail: "b@x.com", Message: "two"},
		&githubclt.Commit{AuthorName: "Bob", AuthorEmail: "b@x.com", Message: "three"},
	)
	clt.
		EXPECT().
		MergePullRequest(
			gomock.Any(),
			gomock.Eq(repoOwner),
			gomock.Eq(repo),
			gomock.Eq(7),
			gomock.Eq(githubclt.MergeMethodMerge),
			gomock.Eq("merge: Add feature (#7)"),
			gomock.Eq("\"Does X\"\n\nAuthored-by: Alice <a@x.com>\nAuthored-by: Bob <b@x.com>"),
		).
		Return(nil).
		Times(1)

	c := newTestCoordinator(t, clt)

	err := c.Run(context.Background(), pullRequestEvent(7))
	require.NoError(t, err)
}

func TestPullRequestIsNotMergedWhenNotClean(t *testing.T) {
	for _, state := range []string{"dirty", "unstable", "blocked", "behind", "draft", "has_hooks", "unknown", ""} {
		t.Run(state, func(t *testing.T) {
			mockctrl := gomock.NewController(t)
			clt := mocks.NewMockGithubClient(mockctrl)

			mockPullRequestCall(clt, 42, state)
			clt.EXPECT().PullRequestCommits(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			clt.EXPECT().MergePullRequest(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

			metrics := NewMetrics()
			c := newTestCoordinator(t, clt, WithMetrics(metrics))

			err := c.Run(context.Background(), pullRequestEvent(42))
			require.NoError(t, err)

			assert.Equal(t, float64(1), testutil.ToFloat64(metrics.mergeDecisions.WithLabelValues(string(resultLabelSkippedNotCleanVal))))
		})
	}
}

func TestFailedStatusEventDoesNotCallGithub(t *testing.T) {
	mockctrl := gomock.NewController(t)
	clt := mocks.NewMockGithubClient(mockctrl)

	c := newTestCoordinator(t, clt)

	err := c.Run(context.Background(), &Event{
		Kind:    EventKindStatus,
		Name:    "status",
		Payload: &StatusPayload{State: "failure", Branches: []string{"feature-x"}},
		JSON:    []byte(`{"state": "failure"}`),
	})
	require.NoError(t, err)
}

func TestSuccessfulStatusEventMergesPullRequestsOfAllBranches(t *testing.T) {
	mockctrl := gomock.NewController(t)
	clt := mocks.NewMockGithubClient(mockctrl)

	commit := &githubclt.Commit{AuthorName: "Alice", AuthorEmail: "a@x.com", Message: "Fix bug"}

	gomock.InOrder(
		mockListOpenPullRequestsByHeadCall(clt, "a", 1, 2),
		mockListOpenPullRequestsByHeadCall(clt, "b", 3),

		mockPullRequestCall(clt, 1, githubclt.MergeableStateClean),
		mockPullRequestCommitsCall(clt, 1, commit),
		mockSuccessfulMergeCall(clt, 1),

		mockPullRequestCall(clt, 2, "blocked"),

		mockPullRequestCall(clt, 3, githubclt.MergeableStateClean),
		mockPullRequestCommitsCall(clt, 3, commit),
		mockSuccessfulMergeCall(clt, 3),
	)

	metrics := NewMetrics()
	c := newTestCoordinator(t, clt, WithMetrics(metrics))

	err := c.Run(context.Background(), &Event{
		Kind:    EventKindStatus,
		Name:    "status",
		Payload: &StatusPayload{State: "success", Branches: []string{"a", "b"}},
		JSON:    []byte(`{"state": "success"}`),
	})
	require.NoError(t, err)

	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.candidates))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.mergeDecisions.WithLabelValues(string(resultLabelMergedVal))))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.mergeDecisions.WithLabelValues(string(resultLabelSkippedNotCleanVal))))
}

func TestCheckSuiteWithoutPullRequestResolvesHeadBranch(t *testing.T) {
	mockctrl := gomock.NewController(t)
	clt := mocks.NewMockGithubClient(mockctrl)

	gomock.InOrder(
		mockListOpenPullRequestsByHeadCall(clt, "feature-x", 9),
		mockPullRequestCall(clt, 9, githubclt.MergeableStateClean),
		mockPullRequestCommitsCall(clt, 9, &githubclt.Commit{Message: "Fix"}),
		mockSuccessfulMergeCall(clt, 9),
	)

	c := newTestCoordinator(t, clt)

	err := c.Run(context.Background(), &Event{
		Kind: EventKindCheckSuite,
		Name: "check_suite",
		Payload: &CheckPayload{
			EventKind:  EventKindCheckSuite,
			Action:     "completed",
			Conclusion: "success",
			HeadBranch: "feature-x",
		},
		JSON: []byte(`{"action": "completed"}`),
	})
	require.NoError(t, err)
}

func TestFailingCandidateDoesNotBlockOthers(t *testing.T) {
	mockctrl := gomock.NewController(t)
	clt := mocks.NewMockGithubClient(mockctrl)

	mockListOpenPullRequestsByHeadCall(clt, "feature-x", 5, 6)

	clt.
		EXPECT().
		PullRequest(gomock.Any(), gomock.Eq(repoOwner), gomock.Eq(repo), gomock.Eq(5)).
		Return(nil, errors.New("internal server error")).
		Times(1)

	mockPullRequestCall(clt, 6, githubclt.MergeableStateClean)
	mockPullRequestCommitsCall(clt, 6, &githubclt.Commit{Message: "Fix"})
	mockSuccessfulMergeCall(clt, 6)

	metrics := NewMetrics()
	c := newTestCoordinator(t, clt, WithMetrics(metrics))

	err := c.Run(context.Background(), &Event{
		Kind:    EventKindStatus,
		Name:    "status",
		Payload: &StatusPayload{State: "success", Branches: []string{"feature-x"}},
		JSON:    []byte(`{"state": "success"}`),
	})
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.mergeDecisions.WithLabelValues(string(resultLabelFailedVal))))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.mergeDecisions.WithLabelValues(string(resultLabelMergedVal))))
}

func TestBranchLookupErrorSkipsBranch(t *testing.T) {
	mockctrl := gomock.NewController(t)
	clt := mocks.NewMockGithubClient(mockctrl)

	clt.
		EXPECT().
		ListOpenPullRequestsByHead(gomock.Any(), gomock.Eq(repoOwner), gomock.Eq(repo), gomock.Eq("a")).
		Return(nil, errors.New("timeout")).
		Times(1)
	mockListOpenPullRequestsByHeadCall(clt, "b", 3)
	mockPullRequestCall(clt, 3, "dirty")

	c := newTestCoordinator(t, clt)

	err := c.Run(context.Background(), &Event{
		Kind:    EventKindStatus,
		Name:    "status",
		Payload: &StatusPayload{State: "success", Branches: []string{"a", "b"}},
		JSON:    []byte(`{"state": "success"}`),
	})
	require.NoError(t, err)
}

func TestSinglePullRequestErrorIsReturned(t *testing.T) {
	mockctrl := gomock.NewController(t)
	clt := mocks.NewMockGithubClient(mockctrl)

	mergeErr := errors.New("405 Pull Request is not mergeable")

	mockPullRequestCall(clt, 5, githubclt.MergeableStateClean)
	mockPullRequestCommitsCall(clt, 5, &githubclt.Commit{Message: "Fix"})
	clt.
		EXPECT().
		MergePullRequest(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Eq(5), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(mergeErr).
		Times(1)

	c := newTestCoordinator(t, clt)

	err := c.Run(context.Background(), &Event{
		Kind: EventKindCheckRun,
		Name: "check_run",
		Payload: &CheckPayload{
			EventKind:   EventKindCheckRun,
			Action:      "completed",
			Conclusion:  "success",
			PullRequest: 5,
		},
		JSON: []byte(`{"action": "completed"}`),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, mergeErr)
	assert.Contains(t, err.Error(), "#5")
}

func TestPullRequestWithoutCommitsIsNotMerged(t *testing.T) {
	mockctrl := gomock.NewController(t)
	clt := mocks.NewMockGithubClient(mockctrl)

	mockPullRequestCall(clt, 42, githubclt.MergeableStateClean)
	mockPullRequestCommitsCall(clt, 42)
	clt.EXPECT().MergePullRequest(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	c := newTestCoordinator(t, clt)

	err := c.Run(context.Background(), pullRequestEvent(42))
	require.Error(t, err)
}

func TestMissingPullRequestContextIsNotAnError(t *testing.T) {
	mockctrl := gomock.NewController(t)
	clt := mocks.NewMockGithubClient(mockctrl)

	c := newTestCoordinator(t, clt)

	err := c.Run(context.Background(), pullRequestEvent(0))
	require.NoError(t, err)
}

func TestUnsupportedEventIsIgnored(t *testing.T) {
	mockctrl := gomock.NewController(t)
	clt := mocks.NewMockGithubClient(mockctrl)

	metrics := NewMetrics()
	c := newTestCoordinator(t, clt, WithMetrics(metrics))

	err := c.Run(context.Background(), &Event{Kind: EventKindUnsupported, Name: "push"})
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.processedEvents.WithLabelValues("unsupported")))
}

func TestEventNotMatchingFilterIsIgnored(t *testing.T) {
	mockctrl := gomock.NewController(t)
	clt := mocks.NewMockGithubClient(mockctrl)

	filter, err := NewEventFilter(`.action == "opened"`)
	require.NoError(t, err)

	c := newTestCoordinator(t, clt, WithEventFilter(filter))

	err = c.Run(context.Background(), pullRequestEvent(42))
	require.NoError(t, err)
}

func TestEventMatchingFilterIsProcessed(t *testing.T) {
	mockctrl := gomock.NewController(t)
	clt := mocks.NewMockGithubClient(mockctrl)

	mockPullRequestCall(clt, 42, "behind")

	filter, err := NewEventFilter(`.action == "labeled"`)
	require.NoError(t, err)

	c := newTestCoordinator(t, clt, WithEventFilter(filter))

	err = c.Run(context.Background(), pullRequestEvent(42))
	require.NoError(t, err)
}

func TestFailingFilterIsConfigError(t *testing.T) {
	mockctrl := gomock.NewController(t)
	clt := mocks.NewMockGithubClient(mockctrl)

	filter, err := NewEventFilter(`.action`)
	require.NoError(t, err)

	c := newTestCoordinator(t, clt, WithEventFilter(filter))

	err = c.Run(context.Background(), pullRequestEvent(42))
	require.Error(t, err)
	assert.True(t, amerr.IsConfigError(err))
}

func TestDryRunDoesNotMerge(t *testing.T) {
	mockctrl := gomock.NewController(t)
	clt := mocks.NewMockGithubClient(mockctrl)

	mockPullRequestCall(clt, 42, githubclt.MergeableStateClean)
	mockPullRequestCommitsCall(clt, 42, &githubclt.Commit{Message: "Fix bug"})
	clt.EXPECT().MergePullRequest(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	metrics := NewMetrics()
	c := New(
		NewDryGithubClient(clt, zap.L()),
		Repository{Owner: repoOwner, Name: repo},
		WithMetrics(metrics),
	)

	err := c.Run(context.Background(), pullRequestEvent(42))
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.mergeDecisions.WithLabelValues(string(resultLabelMergedVal))))
}
