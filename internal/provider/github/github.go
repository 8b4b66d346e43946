package github

import (
	"fmt"
	"io"
	"os"

	go_github "github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/simplesurance/automerger/internal/logfields"
)

const loggerName = "github-event-provider"

// Load reads the webhook payload of an event of type eventType from reader
// and parses it into the corresponding go-github event struct.
func Load(eventType string, reader io.Reader) (*Event, error) {
	logFields := []zap.Field{
		logfields.EventProvider("github"),
		logfields.EventKind(eventType),
	}

	logger := zap.L().Named(loggerName).With(logFields...)

	payload, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading event payload failed: %w", err)
	}

	logger.Debug(
		"read event payload",
		logfields.Event("github_event_payload_read"),
		zap.ByteString("event_payload", payload),
	)

	event, err := go_github.ParseWebHook(eventType, payload)
	if err != nil {
		return nil, fmt.Errorf("parsing %s event payload failed: %w", eventType, err)
	}

	return &Event{
		Type:      eventType,
		JSON:      payload,
		Event:     event,
		LogFields: logFields,
	}, nil
}

// LoadFile reads the webhook payload of an event of type eventType from the
// file at path.
func LoadFile(eventType, path string) (*Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Load(eventType, f)
}
