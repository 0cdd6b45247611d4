// Package transport archives finished recordings in a local directory or on
// a remote host over SFTP.
package transport

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Archive is a place recordings are copied to. Names are paths inside the
// archive as built by Join.
type Archive interface {
	// Prepare creates dir and its parents.
	Prepare(ctx context.Context, dir string) error

	// Size reports the size of an archived file. ok is false when it does
	// not exist.
	Size(ctx context.Context, name string) (size int64, ok bool, err error)

	// Store copies local to name and returns the bytes written. A partial
	// transfer never appears under name.
	Store(ctx context.Context, local, name string) (int64, error)

	// Join builds a name inside the archive.
	Join(dir, file string) string

	Close() error
	String() string
}

// Options tune an upload.
type Options struct {
	Timeout       time.Duration // whole upload
	RetryAttempts int           // per file
	RetryDelay    time.Duration
	Overwrite     bool // store even when a same-sized copy exists
}

// DefaultOptions returns the defaults used by the upload command.
func DefaultOptions() Options {
	return Options{
		Timeout:       5 * time.Minute,
		RetryAttempts: 3,
		RetryDelay:    time.Second,
	}
}

// SSHOptions configures the SFTP archive.
type SSHOptions struct {
	Options

	User          string
	KeyFile       string
	KeyPassphrase string
	Password      string
	AllowPassword bool // a password is only offered when set
	Agent         bool

	KnownHostsFile     string
	InsecureIgnoreHost bool

	Port           int
	ConnectTimeout time.Duration
	KeepAlive      time.Duration
}

// DefaultSSHOptions returns the SSH defaults.
func DefaultSSHOptions() SSHOptions {
	return SSHOptions{
		Options:        DefaultOptions(),
		Port:           22,
		ConnectTimeout: 30 * time.Second,
		KeepAlive:      30 * time.Second,
		Agent:          true,
	}
}

// ValidatePath rejects empty paths and paths that climb above their start.
func ValidatePath(p string) error {
	if p == "" {
		return fmt.Errorf("empty path")
	}
	clean := path.Clean(filepath.ToSlash(p))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("path traversal not allowed: %s", p)
	}
	return nil
}

// ValidateRelativePath checks that rel stays inside base once joined.
func ValidateRelativePath(base, rel string) error {
	if err := ValidatePath(rel); err != nil {
		return err
	}
	joined := path.Join(filepath.ToSlash(base), filepath.ToSlash(rel))
	cleanBase := path.Clean(filepath.ToSlash(base))
	if joined != cleanBase && !strings.HasPrefix(joined, cleanBase+"/") {
		return fmt.Errorf("path traversal not allowed: %s escapes %s", rel, base)
	}
	return nil
}
