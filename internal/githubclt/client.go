// Package githubclt provides a github API client.
package githubclt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v59/github"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/simplesurance/automerger/internal/logfields"
)

const DefaultHTTPClientTimeout = time.Minute

// PageSize is the maximum number of elements that are requested per API
// call.
const PageSize = 100

const loggerName = "github_client"

type options struct {
	restBaseURL string
	graphQLURL  string
}

type Option func(*options)

// WithRESTBaseURL sets the base URL of the GitHub REST API, e.g.
// https://github.example.com/api/v3.
func WithRESTBaseURL(u string) Option {
	return func(o *options) {
		o.restBaseURL = u
	}
}

// WithGraphQLURL sets the URL of the GitHub GraphQL API endpoint, e.g.
// https://github.example.com/api/graphql.
func WithGraphQLURL(u string) Option {
	return func(o *options) {
		o.graphQLURL = u
	}
}

// New returns a new github api client.
// By default the public github.com API endpoints are used.
func New(oauthAPItoken string, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	httpClient := newHTTPClient(oauthAPItoken)

	restClt := github.NewClient(httpClient)
	if o.restBaseURL != "" {
		u, err := url.Parse(o.restBaseURL)
		if err != nil {
			return nil, fmt.Errorf("parsing rest api base url failed: %w", err)
		}

		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}

		restClt.BaseURL = u
	}

	graphQLClt := githubv4.NewClient(httpClient)
	if o.graphQLURL != "" {
		if _, err := url.Parse(o.graphQLURL); err != nil {
			return nil, fmt.Errorf("parsing graphql api url failed: %w", err)
		}

		graphQLClt = githubv4.NewEnterpriseClient(o.graphQLURL, httpClient)
	}

	return &Client{
		restClt:    restClt,
		graphQLClt: graphQLClt,
		logger:     zap.L().Named(loggerName),
	}, nil
}

func newHTTPClient(apiToken string) *http.Client {
	if apiToken == "" {
		return &http.Client{
			Timeout: DefaultHTTPClientTimeout,
		}
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: apiToken},
	)

	tc := oauth2.NewClient(context.Background(), ts)
	tc.Timeout = DefaultHTTPClientTimeout

	return tc
}

// Client is an github API client.
// Errors are returned unmodified or wrapped, operations are not retried.
type Client struct {
	restClt    *github.Client
	graphQLClt *githubv4.Client
	logger     *zap.Logger
}

func toPullRequest(pr *github.PullRequest) *PullRequest {
	return &PullRequest{
		Number:         pr.GetNumber(),
		Title:          pr.GetTitle(),
		Body:           pr.GetBody(),
		MergeableState: pr.GetMergeableState(),
		Branch:         pr.GetHead().GetRef(),
	}
}

// PullRequest fetches the pull request with the given number.
// GitHub computes the mergeable state asynchronously, if it is not computed
// yet it is "unknown".
func (clt *Client) PullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error) {
	pr, _, err := clt.restClt.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, clt.wrapErr(err)
	}

	return toPullRequest(pr), nil
}

// ListOpenPullRequestsByHead returns the open pull requests whose head is
// branch in the repository owner/repo.
// The pull requests are sorted by their update time, the most recently
// updated one first. At most PageSize pull requests are returned.
func (clt *Client) ListOpenPullRequestsByHead(ctx context.Context, owner, repo, branch string) ([]*PullRequest, error) {
	prs, _, err := clt.restClt.PullRequests.List(ctx, owner, repo, &github.PullRequestListOptions{
		State:     "open",
		Head:      owner + ":" + branch,
		Sort:      "updated",
		Direction: "desc",
		ListOptions: github.ListOptions{
			PerPage: PageSize,
		},
	})
	if err != nil {
		return nil, clt.wrapErr(err)
	}

	result := make([]*PullRequest, 0, len(prs))
	for _, pr := range prs {
		result = append(result, toPullRequest(pr))
	}

	return result, nil
}

// MergePullRequest merges the pull request with the given method.
// title and message are used as commit title and commit message, an empty
// message is passed to GitHub as empty message instead of GitHub's default.
func (clt *Client) MergePullRequest(
	ctx context.Context,
	owner, repo string,
	number int,
	method MergeMethod,
	title, message string,
) error {
	res, _, err := clt.restClt.PullRequests.Merge(ctx, owner, repo, number, message, &github.PullRequestOptions{
		CommitTitle:        title,
		MergeMethod:        string(method),
		DontDefaultIfBlank: true,
	})
	if err != nil {
		return clt.wrapErr(err)
	}

	if !res.GetMerged() {
		return fmt.Errorf("github did not merge the pull request: %s", res.GetMessage())
	}

	clt.logger.Debug("pull request merged",
		logfields.Event("github_pull_request_merged"),
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.PullRequest(number),
		logfields.MergeMethod(string(method)),
		zap.String("git.merge_commit", res.GetSHA()),
	)

	return nil
}

func (clt *Client) wrapErr(err error) error {
	var rateLimitErr *github.RateLimitError
	if errors.As(err, &rateLimitErr) {
		clt.logger.Info(
			"rate limit exceeded",
			logfields.Event("github_api_rate_limit_exceeded"),
			zap.Int("github_api_rate_limit", rateLimitErr.Rate.Limit),
			zap.Time("github_api_rate_limit_reset_time", rateLimitErr.Rate.Reset.Time),
		)

		return fmt.Errorf("github api rate limit exceeded, resets at %s: %w",
			rateLimitErr.Rate.Reset.Time.Format(time.RFC3339), err)
	}

	return err
}
