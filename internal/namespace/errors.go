package namespace

import (
	"errors"

	"github.com/tonimelisma/ghdrive/internal/ghapi"
)

// Remote failures keep their ghapi identity so errors.Is works against
// either package.
var (
	ErrNotFound     = ghapi.ErrNotFound
	ErrConflict     = ghapi.ErrConflict
	ErrUnauthorized = ghapi.ErrUnauthorized
	ErrForbidden    = ghapi.ErrForbidden
)

// Namespace-level failures.
var (
	ErrAlreadyExists = errors.New("namespace: already exists")
	ErrUnsupported   = errors.New("namespace: operation not supported at this level")
	ErrTooLarge      = errors.New("namespace: tree listing truncated by GitHub")
	ErrInvalidPath   = errors.New("namespace: invalid path")
	ErrNotFile       = errors.New("namespace: not a file")
	ErrNotDir        = errors.New("namespace: not a directory")
	ErrNotEmpty      = errors.New("namespace: folder not empty")
)
