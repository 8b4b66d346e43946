package automerge

import (
	"fmt"

	"github.com/simplesurance/automerger/internal/amerr"
)

const (
	statusStateSuccess   = "success"
	checkActionCompleted = "completed"
	conclusionSuccess    = "success"
)

// Classification describes the candidate pull requests of an event.
// At most one of PullRequest and Branches is set. When both are unset the
// event has no candidates and NoopReason describes why.
type Classification struct {
	// PullRequest is the number of the only candidate.
	PullRequest int
	// Branches are the head branches whose open pull requests are the
	// candidates.
	Branches []string

	NoopReason string
}

// HasCandidates returns true if the classification references a pull request
// or branches.
func (c *Classification) HasCandidates() bool {
	return c.PullRequest != 0 || len(c.Branches) > 0
}

func noop(reason string) *Classification {
	return &Classification{NoopReason: reason}
}

// Classify determines the candidate pull requests for an event.
// It does not do any API calls, branches must be resolved to pull requests by
// the caller.
// If the event is a pull_request or pull_request_review event that does not
// reference a pull request an amerr.ContextError is returned.
func Classify(ev *Event) (*Classification, error) {
	switch p := ev.Payload.(type) {
	case *StatusPayload:
		if p.State != statusStateSuccess {
			return noop(fmt.Sprintf("status state is %q", p.State)), nil
		}

		if len(p.Branches) == 0 {
			return noop("status event has no branches"), nil
		}

		return &Classification{Branches: p.Branches}, nil

	case *PullRequestPayload:
		if p.Number <= 0 {
			return nil, amerr.NewContextError(fmt.Errorf("%s: %w", p.EventKind, amerr.ErrMissingPullRequest))
		}

		return &Classification{PullRequest: p.Number}, nil

	case *CheckPayload:
		if p.Action != checkActionCompleted {
			return noop(fmt.Sprintf("%s action is %q", p.EventKind, p.Action)), nil
		}

		if p.Conclusion != conclusionSuccess {
			return noop(fmt.Sprintf("%s conclusion is %q", p.EventKind, p.Conclusion)), nil
		}

		if p.PullRequest > 0 {
			return &Classification{PullRequest: p.PullRequest}, nil
		}

		if p.HeadBranch == "" {
			return noop(fmt.Sprintf("%s has no pull requests and no head branch", p.EventKind)), nil
		}

		return &Classification{Branches: []string{p.HeadBranch}}, nil

	case nil:
		return noop(fmt.Sprintf("%s events are not supported", ev.Name)), nil

	default:
		return nil, fmt.Errorf("unsupported payload type: %T", ev.Payload)
	}
}
