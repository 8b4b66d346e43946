package automerge

import "github.com/simplesurance/automerger/internal/logfields"

var (
	logEventProcessing     = logfields.Event("event_processing")
	logEventEventIgnored   = logfields.Event("event_ignored")
	logEventMissingContext = logfields.Event("event_missing_context")
	logEventNoCandidates   = logfields.Event("no_candidates")
	logEventCandidates     = logfields.Event("candidates_determined")
	logEventPRLookupFailed = logfields.Event("github_pull_request_lookup_failed")

	logEventMergeSkipped = logfields.Event("merge_skipped")
	logEventMergeFailed  = logfields.Event("merge_failed")
	logEventMerged       = logfields.Event("merged")
)
