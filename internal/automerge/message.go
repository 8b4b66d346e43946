package automerge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/simplesurance/automerger/internal/githubclt"
	"github.com/simplesurance/automerger/internal/orderedset"
)

// MergeMessage defines how a pull request is merged.
type MergeMessage struct {
	Method githubclt.MergeMethod
	Title  string
	Body   string
}

// NewMergeMessage computes the merge method and the commit message for a pull
// request.
// A pull request with a single commit is squashed, the title is the first
// line of the commit message and the body is the rest, starting with the line
// break.
// Pull requests with multiple commits are merged with a merge commit, the
// body is the quoted pull request description followed by an Authored-by line
// per distinct commit author.
func NewMergeMessage(pr *githubclt.PullRequest, commits []*githubclt.Commit) (*MergeMessage, error) {
	switch len(commits) {
	case 0:
		return nil, errors.New("pull request has no commits")
	case 1:
		return squashMessage(pr.Number, commits[0]), nil
	default:
		return mergeCommitMessage(pr, commits), nil
	}
}

func squashMessage(prNumber int, commit *githubclt.Commit) *MergeMessage {
	title, body := commit.Message, ""
	if idx := strings.IndexByte(commit.Message, '\n'); idx >= 0 {
		title, body = commit.Message[:idx], commit.Message[idx:]
	}

	return &MergeMessage{
		Method: githubclt.MergeMethodSquash,
		Title:  fmt.Sprintf("%s (#%d)", title, prNumber),
		Body:   body,
	}
}

func mergeCommitMessage(pr *githubclt.PullRequest, commits []*githubclt.Commit) *MergeMessage {
	var body strings.Builder

	body.WriteString(`"`)
	body.WriteString(pr.Body)
	body.WriteString("\"\n\n")
	body.WriteString(strings.Join(authoredByLines(commits), "\n"))

	return &MergeMessage{
		Method: githubclt.MergeMethodMerge,
		Title:  fmt.Sprintf("merge: %s (#%d)", pr.Title, pr.Number),
		Body:   body.String(),
	}
}

// authoredByLines returns an "Authored-by: Name <email>" line per distinct
// commit author, in the order they first appear in commits.
func authoredByLines(commits []*githubclt.Commit) []string {
	set := orderedset.New[string]()

	for _, c := range commits {
		set.Add(fmt.Sprintf("Authored-by: %s <%s>", c.AuthorName, c.AuthorEmail))
	}

	return set.AsSlice()
}
