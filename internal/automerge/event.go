package automerge

import (
	"fmt"

	go_github "github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/simplesurance/automerger/internal/amerr"
	"github.com/simplesurance/automerger/internal/logfields"
	github_prov "github.com/simplesurance/automerger/internal/provider/github"
)

// EventKind is the type of CI event that triggered a run.
type EventKind uint8

const (
	EventKindUnsupported EventKind = iota
	EventKindStatus
	EventKindPullRequest
	EventKindPullRequestReview
	EventKindCheckSuite
	EventKindCheckRun
)

var eventKindStrings = [...]string{
	EventKindUnsupported:       "unsupported",
	EventKindStatus:            "status",
	EventKindPullRequest:       "pull_request",
	EventKindPullRequestReview: "pull_request_review",
	EventKindCheckSuite:        "check_suite",
	EventKindCheckRun:          "check_run",
}

func (k EventKind) String() string {
	if int(k) >= len(eventKindStrings) {
		return fmt.Sprintf("unsupported EventKind value: %d", k)
	}

	return eventKindStrings[k]
}

// ParseEventKind returns the EventKind for a github event name.
// EventKindUnsupported is returned for all events that are not processed.
func ParseEventKind(name string) EventKind {
	for i, s := range eventKindStrings {
		if EventKind(i) == EventKindUnsupported {
			continue
		}

		if s == name {
			return EventKind(i)
		}
	}

	return EventKindUnsupported
}

// Payload is the event specific data that is needed to determine the
// candidate pull requests.
// It is one of *StatusPayload, *PullRequestPayload or *CheckPayload.
type Payload interface {
	Kind() EventKind
}

// StatusPayload is the payload of a commit status event.
type StatusPayload struct {
	State string
	// Branches are the names of the branches containing the commit
	// that the status is for.
	Branches []string
}

func (*StatusPayload) Kind() EventKind {
	return EventKindStatus
}

// PullRequestPayload is the payload of pull_request and pull_request_review
// events.
type PullRequestPayload struct {
	EventKind EventKind
	// Number is 0 if the event does not reference a pull request.
	Number int
}

func (p *PullRequestPayload) Kind() EventKind {
	return p.EventKind
}

// CheckPayload is the payload of check_suite and check_run events.
type CheckPayload struct {
	EventKind  EventKind
	Action     string
	Conclusion string
	// PullRequest is the number of the first pull request that is
	// associated with the check, 0 if none is associated.
	PullRequest int
	HeadBranch  string
}

func (p *CheckPayload) Kind() EventKind {
	return p.EventKind
}

// Event is a CI event that triggered a run.
type Event struct {
	Kind EventKind
	// Name is the event name as provided by the CI environment.
	Name string
	// Payload is nil for EventKindUnsupported.
	Payload Payload
	// JSON is the raw event payload.
	JSON      []byte
	LogFields []zap.Field
}

func (e *Event) String() string {
	return e.Name
}

// LoadEvent loads the event with the given name.
// For supported event kinds the payload document at path is read and
// converted, for unsupported ones an Event without payload is returned.
// If the payload is required and path is empty or the payload is invalid, an
// amerr.ConfigError is returned.
func LoadEvent(name, path string) (*Event, error) {
	kind := ParseEventKind(name)
	if kind == EventKindUnsupported {
		return &Event{
			Kind:      kind,
			Name:      name,
			LogFields: []zap.Field{logfields.EventKind(name)},
		}, nil
	}

	if path == "" {
		return nil, amerr.NewConfigErrorf("event payload path is not set, it is required for %s events", name)
	}

	provEv, err := github_prov.LoadFile(name, path)
	if err != nil {
		return nil, amerr.NewConfigErrorf("loading event payload from %q failed: %w", path, err)
	}

	ev, err := fromProviderEvent(kind, provEv)
	if err != nil {
		return nil, amerr.NewConfigError(err)
	}

	return ev, nil
}

func firstPullRequestNumber(prs []*go_github.PullRequest) int {
	if len(prs) == 0 || prs[0] == nil {
		return 0
	}

	return prs[0].GetNumber()
}

func branchNames(branches []*go_github.Branch) []string {
	result := make([]string, 0, len(branches))

	for _, branch := range branches {
		if name := branch.GetName(); name != "" {
			result = append(result, name)
		}
	}

	return result
}

func fromProviderEvent(kind EventKind, provEv *github_prov.Event) (*Event, error) {
	var payload Payload

	switch ev := provEv.Event.(type) {
	case *go_github.StatusEvent:
		payload = &StatusPayload{
			State:    ev.GetState(),
			Branches: branchNames(ev.Branches),
		}

	case *go_github.PullRequestEvent:
		nr := ev.GetPullRequest().GetNumber()
		if nr == 0 {
			nr = ev.GetNumber()
		}

		payload = &PullRequestPayload{EventKind: kind, Number: nr}

	case *go_github.PullRequestReviewEvent:
		payload = &PullRequestPayload{
			EventKind: kind,
			Number:    ev.GetPullRequest().GetNumber(),
		}

	case *go_github.CheckSuiteEvent:
		cs := ev.GetCheckSuite()
		payload = &CheckPayload{
			EventKind:   kind,
			Action:      ev.GetAction(),
			Conclusion:  cs.GetConclusion(),
			PullRequest: firstPullRequestNumber(cs.PullRequests),
			HeadBranch:  cs.GetHeadBranch(),
		}

	case *go_github.CheckRunEvent:
		cr := ev.GetCheckRun()
		payload = &CheckPayload{
			EventKind:   kind,
			Action:      ev.GetAction(),
			Conclusion:  cr.GetConclusion(),
			PullRequest: firstPullRequestNumber(cr.PullRequests),
			// check runs do not have a head_branch field, it is
			// only part of their check suite
			HeadBranch: cr.GetCheckSuite().GetHeadBranch(),
		}

	default:
		return nil, fmt.Errorf("unsupported payload type %T for %s event", provEv.Event, kind)
	}

	return &Event{
		Kind:      kind,
		Name:      provEv.Type,
		Payload:   payload,
		JSON:      provEv.JSON,
		LogFields: eventLogFields(provEv.LogFields, payload),
	}, nil
}

func eventLogFields(fields []zap.Field, payload Payload) []zap.Field {
	result := append([]zap.Field{}, fields...)

	switch p := payload.(type) {
	case *PullRequestPayload:
		if p.Number != 0 {
			result = append(result, logfields.PullRequest(p.Number))
		}

	case *CheckPayload:
		result = append(result, zap.String("github.check_action", p.Action))

		if p.PullRequest != 0 {
			result = append(result, logfields.PullRequest(p.PullRequest))
		}

		if p.HeadBranch != "" {
			result = append(result, logfields.Branch(p.HeadBranch))
		}
	}

	return result
}
