package github

import "go.uber.org/zap"

// Event is a parsed Github webhook event payload.
type Event struct {
	// Type is the github webhook event type, e.g. "check_suite".
	Type string
	// JSON is the event payload as JSON
	JSON []byte
	// Event is the parsed JSON payload as struct type returned by
	// github.ParseWebHook()
	Event     any
	LogFields []zap.Field
}
