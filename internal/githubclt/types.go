package githubclt

// MergeMethod is the strategy GitHub uses to merge a pull request.
type MergeMethod string

const (
	MergeMethodMerge  MergeMethod = "merge"
	MergeMethodSquash MergeMethod = "squash"
)

// MergeableStateClean is the mergeable state of a pull request that has no
// conflicts and passed all required checks.
const MergeableStateClean = "clean"

// PullRequest is a snapshot of the pull request fields that are relevant for
// deciding if and how it is merged.
type PullRequest struct {
	Number int
	Title  string
	Body   string
	// MergeableState is the state computed by GitHub, e.g. clean, dirty,
	// unstable, blocked, behind or unknown.
	MergeableState string
	Branch         string
}

// Commit is a commit of a pull request.
type Commit struct {
	AuthorName  string
	AuthorEmail string
	Message     string
}
