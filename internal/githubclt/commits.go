package githubclt

import (
	"context"
	"errors"
	"fmt"

	"github.com/shurcooL/githubv4"
)

type queryCommit struct {
	Message string
	Author  struct {
		Name  string
		Email string
	}
}

// PullRequestCommits returns all commits of a pull request in the order they
// were created.
// The commits are retrieved via the GraphQL API, it does not limit the
// number of returned commits as the REST endpoint does.
func (clt *Client) PullRequestCommits(ctx context.Context, owner, repo string, number int) ([]*Commit, error) {
	type graphQLQueryCommits struct {
		Repository struct {
			PullRequest struct {
				Commits struct {
					PageInfo struct {
						EndCursor   string
						HasNextPage bool
					}
					Nodes []struct {
						Commit queryCommit
					}
				} `graphql:"commits(first: $commitsFirst, after: $commitsAfter)"`
			} `graphql:"pullRequest(number: $number)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	var result []*Commit

	vars := map[string]any{
		"owner":        githubv4.String(owner),
		"name":         githubv4.String(repo),
		"number":       githubv4.Int(number),
		"commitsFirst": githubv4.Int(PageSize),
		"commitsAfter": (*githubv4.String)(nil),
	}

	for {
		var q graphQLQueryCommits

		err := clt.graphQLClt.Query(ctx, &q, vars)
		if err != nil {
			return nil, fmt.Errorf("querying pull request commits failed: %w", err)
		}

		commits := q.Repository.PullRequest.Commits
		for _, node := range commits.Nodes {
			result = append(result, &Commit{
				AuthorName:  node.Commit.Author.Name,
				AuthorEmail: node.Commit.Author.Email,
				Message:     node.Commit.Message,
			})
		}

		if !commits.PageInfo.HasNextPage {
			return result, nil
		}

		if commits.PageInfo.EndCursor == "" {
			return nil, errors.New("retrieving all commits failed, HasNextPage is true, expected non-empty EndCursor")
		}

		vars["commitsAfter"] = githubv4.NewString(githubv4.String(commits.PageInfo.EndCursor))
	}
}
