package logfields

import "go.uber.org/zap"

func PullRequest(val int) zap.Field {
	return zap.Int("github.pull_request", val)
}

func PullRequests(val []int) zap.Field {
	return zap.Ints("github.pull_requests", val)
}

func Repository(val string) zap.Field {
	return zap.String("git.repository", val)
}

func RepositoryOwner(val string) zap.Field {
	return zap.String("github.repository_owner", val)
}

func Branch(val string) zap.Field {
	return zap.String("git.branch", val)
}

func MergeableState(val string) zap.Field {
	return zap.String("github.mergeable_state", val)
}

func MergeMethod(val string) zap.Field {
	return zap.String("github.merge_method", val)
}
