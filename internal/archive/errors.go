package archive

import (
	"errors"
	"fmt"
)

// ErrArchiveRead is matched (errors.Is) by every fatal container error: the
// archive could not be opened, a header is corrupt, or the stream ended in the
// middle of an entry. No partial output of a run that hit it is valid.
var ErrArchiveRead = errors.New("archive read error")

// ReadError is the fatal error returned by Open and Walker.Next.
type ReadError struct {
	Path  string // archive path, when known
	Op    string // "open", "sniff", "next" or "read"
	Entry string // member name, for "read"
	Err   error
}

func (e *ReadError) Error() string {
	switch {
	case e.Entry != "":
		return fmt.Sprintf("archive %s %s %q: %v", e.Path, e.Op, e.Entry, e.Err)
	case e.Path != "":
		return fmt.Sprintf("archive %s %s: %v", e.Path, e.Op, e.Err)
	default:
		return fmt.Sprintf("archive %s: %v", e.Op, e.Err)
	}
}

func (e *ReadError) Unwrap() error { return e.Err }

// Is reports ErrArchiveRead as a match so callers need not type-assert.
func (e *ReadError) Is(target error) bool { return target == ErrArchiveRead }

// EntryError describes one member that could not be turned into an Entry.
// It is recoverable: the walker reports it through Options.OnSkip, counts it
// as skipped, and moves on to the next member.
type EntryError struct {
	Name   string
	Reason string
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("skip entry %q: %s", e.Name, e.Reason)
}
