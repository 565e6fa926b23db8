package ghapi

// AccountKind distinguishes organization accounts from user accounts.
type AccountKind int

// Account kinds.
const (
	AccountUser AccountKind = iota + 1
	AccountOrg
)

func (k AccountKind) String() string {
	switch k {
	case AccountUser:
		return "user"
	case AccountOrg:
		return "org"
	default:
		return "unknown"
	}
}

// Account is a GitHub user or organization.
type Account struct {
	Login string
	Kind  AccountKind
}

// Repository is the subset of repository metadata the namespace needs.
type Repository struct {
	Owner         string
	Name          string
	DefaultBranch string
	Private       bool
}

// EntryKind is the git object type of a tree entry.
type EntryKind string

// Tree entry kinds as reported by the git trees API.
const (
	EntryBlob   EntryKind = "blob"
	EntryTree   EntryKind = "tree"
	EntryCommit EntryKind = "commit" // submodule pointer
)

// TreeEntry is one row of a git tree listing. Path is relative to the
// tree that was listed (the repository root for recursive listings).
type TreeEntry struct {
	Path string
	Kind EntryKind
	Sha  string
	Size int64
}

// Tree is a git tree listing. Truncated is set when GitHub capped the
// response and some entries are missing.
type Tree struct {
	Sha       string
	Entries   []TreeEntry
	Truncated bool
}

// Blob is the decoded content of a file together with its blob SHA.
type Blob struct {
	Content []byte
	Sha     string
}
