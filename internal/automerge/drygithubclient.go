package automerge

import (
	"context"

	"go.uber.org/zap"

	"github.com/simplesurance/automerger/internal/githubclt"
	"github.com/simplesurance/automerger/internal/logfields"
)

// DryGithubClient is a github-client that does not do any changes on github.
// Merging is simulated and always succeeds.
// All other operations are forwarded to a wrapped GithubClient.
type DryGithubClient struct {
	clt    GithubClient
	logger *zap.Logger
}

func NewDryGithubClient(clt GithubClient, logger *zap.Logger) *DryGithubClient {
	return &DryGithubClient{
		clt:    clt,
		logger: logger.Named("dry_github_client"),
	}
}

func (c *DryGithubClient) PullRequest(ctx context.Context, owner, repo string, number int) (*githubclt.PullRequest, error) {
	return c.clt.PullRequest(ctx, owner, repo, number)
}

func (c *DryGithubClient) PullRequestCommits(ctx context.Context, owner, repo string, number int) ([]*githubclt.Commit, error) {
	return c.clt.PullRequestCommits(ctx, owner, repo, number)
}

func (c *DryGithubClient) ListOpenPullRequestsByHead(ctx context.Context, owner, repo, branch string) ([]*githubclt.PullRequest, error) {
	return c.clt.ListOpenPullRequestsByHead(ctx, owner, repo, branch)
}

func (c *DryGithubClient) MergePullRequest(
	_ context.Context,
	owner, repo string,
	number int,
	method githubclt.MergeMethod,
	title, message string,
) error {
	c.logger.Info(
		"simulated merging of pull request, nothing was merged on github",
		logfields.Event("github_merge_simulated"),
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.PullRequest(number),
		logfields.MergeMethod(string(method)),
		zap.String("commit_title", title),
		zap.String("commit_message", message),
	)

	return nil
}
