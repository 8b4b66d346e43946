package logfields

import "go.uber.org/zap"

func EventProvider(val string) zap.Field {
	return zap.String("event_provider", val)
}

func Event(val string) zap.Field {
	return zap.String("event", val)
}

// EventKind is the name of the CI event that triggered the run, e.g.
// "check_suite".
func EventKind(val string) zap.Field {
	return zap.String("ci.event_kind", val)
}

func Reason(val string) zap.Field {
	return zap.String("reason", val)
}
