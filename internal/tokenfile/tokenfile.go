// Package tokenfile reads and writes the on-disk credential file: an
// OAuth2 token plus the login it belongs to. It is a leaf package shared
// by the CLI and the ghapi auth helpers.
package tokenfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
)

// FilePerms restricts token files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the token directory.
const DirPerms = 0o700

// Source values record how a credential was obtained.
const (
	SourceDevice = "device" // OAuth device flow
	SourcePAT    = "pat"    // personal access token pasted by the user
)

// File is the on-disk format of a credential file.
type File struct {
	Token   *oauth2.Token `json:"token"`
	Login   string        `json:"login,omitempty"`
	Source  string        `json:"source,omitempty"`
	SavedAt time.Time     `json:"saved_at"`
}

// Load reads a credential file. Returns (nil, nil) if it does not exist.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("tokenfile: reading %s: %w", path, err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("tokenfile: decoding %s: %w", path, err)
	}

	if f.Token == nil || f.Token.AccessToken == "" {
		return nil, fmt.Errorf("tokenfile: %s has no access token (log in again)", path)
	}

	return &f, nil
}

// Save writes f atomically (temp file + rename) with 0600 permissions,
// stamping SavedAt. Token values are never logged.
func Save(path string, f *File) error {
	if f == nil || f.Token == nil {
		return errors.New("tokenfile: refusing to save an empty credential")
	}

	f.SavedAt = time.Now().UTC()

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("tokenfile: encoding: %w", err)
	}

	dir := filepath.Dir(path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return fmt.Errorf("tokenfile: creating directory %s: %w", dir, mkErr)
	}

	// Same directory as the target so rename(2) stays on one filesystem.
	tmp, err := os.CreateTemp(dir, ".token-*.tmp")
	if err != nil {
		return fmt.Errorf("tokenfile: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := writeAndSync(tmp, data); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("tokenfile: renaming: %w", err)
	}

	success = true

	return nil
}

func writeAndSync(tmp *os.File, data []byte) error {
	if err := tmp.Chmod(FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: writing: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tokenfile: closing: %w", err)
	}

	return nil
}

// Remove deletes the credential file. A missing file is not an error;
// the returned bool reports whether anything was removed.
func Remove(path string) (bool, error) {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("tokenfile: removing %s: %w", path, err)
	}

	return true, nil
}
