// Package archive streams document entries out of a tar container without
// extracting anything to disk.
//
// The container may be a plain tar, or a tar compressed with gzip or zstd;
// the codec is sniffed from the leading magic bytes. Entries are yielded in
// the archive's stored order, which is the canonical order for everything
// downstream.
package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"mailcorpus/internal/datasource/file"
)

// DefaultMaxEntryBytes bounds a single document payload. Maildir messages are
// small; anything larger is treated as a corrupt entry and skipped.
const DefaultMaxEntryBytes = 64 << 20

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Entry is one leaf document read from the container. It is ephemeral: the
// walker does not retain it after Next returns.
type Entry struct {
	// Owner is the first path segment below the stripped root
	// (e.g. "allen-p" for "maildir/allen-p/inbox/1.").
	Owner string
	// Path is the collection path below the owner ("inbox", "sent/2001").
	Path []string
	// Name is the full member name as stored in the container.
	Name    string
	Payload []byte
}

// Folder joins Path with "/".
func (e Entry) Folder() string { return strings.Join(e.Path, "/") }

// Options tune a Walker.
type Options struct {
	// StripComponents drops this many leading directory segments before the
	// owner segment. The maildir layout puts everything under one root, so
	// the default is 1.
	StripComponents int

	// MaxEntryBytes skips members larger than this. Zero means
	// DefaultMaxEntryBytes; negative disables the limit.
	MaxEntryBytes int64

	// OnSkip, when set, receives every recoverable entry failure.
	OnSkip func(err *EntryError)
}

// Stats are the walker's running counts.
//
// Invariant once the walk reaches io.EOF:
//
//	emitted + Skipped == LeafVisited
//
// where emitted is the number of entries returned by Next. Directory members
// are filtered before counting and appear in neither field.
type Stats struct {
	LeafVisited int64
	Skipped     int64
}

// Walker is a single-pass, forward-only reader over a container. It owns the
// underlying file handle exclusively and is not safe for concurrent use.
type Walker struct {
	path    string
	file    io.Closer
	codec   io.Closer
	tr      *tar.Reader
	cr      *countingReader
	current string // member whose data the tar reader is positioned in
	dataEnd int64  // block-aligned stream offset past the last member's data
	opt     Options
	stats   Stats
	closed  bool
}

// openFn is a test seam for the archive source.
var openFn = func(ctx context.Context, path string) (io.ReadCloser, error) {
	return file.NewLocal(path).Open(ctx)
}

// Open opens the container at path and prepares a Walker positioned before
// the first member.
func Open(ctx context.Context, path string, opt Options) (*Walker, error) {
	rc, err := openFn(ctx, path)
	if err != nil {
		return nil, &ReadError{Path: path, Op: "open", Err: err}
	}
	w, err := NewWalker(rc, opt)
	if err != nil {
		rc.Close()
		var re *ReadError
		if errors.As(err, &re) {
			re.Path = path
		}
		return nil, err
	}
	w.path = path
	return w, nil
}

// NewWalker wraps an already opened container stream. The Walker takes
// ownership of rc and closes it on Close.
func NewWalker(rc io.ReadCloser, opt Options) (*Walker, error) {
	if opt.MaxEntryBytes == 0 {
		opt.MaxEntryBytes = DefaultMaxEntryBytes
	}
	if opt.StripComponents < 0 {
		opt.StripComponents = 0
	}

	br := bufio.NewReaderSize(rc, 64<<10)
	magic, err := br.Peek(len(zstdMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, &ReadError{Op: "sniff", Err: err}
	}

	w := &Walker{file: rc, opt: opt}
	var stream io.Reader = br
	switch {
	case bytes.HasPrefix(magic, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, &ReadError{Op: "sniff", Err: fmt.Errorf("gzip: %w", err)}
		}
		w.codec = zr
		stream = zr
	case bytes.HasPrefix(magic, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, &ReadError{Op: "sniff", Err: fmt.Errorf("zstd: %w", err)}
		}
		rc := zr.IOReadCloser()
		w.codec = rc
		stream = rc
	}
	w.cr = &countingReader{r: stream}
	w.tr = tar.NewReader(w.cr)
	return w, nil
}

// endMarker is the two zero blocks that close a tar stream.
const endMarker = 2 * 512

// countingReader counts the bytes tar.Reader has consumed.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Next returns the next leaf entry, or io.EOF once the container is
// exhausted. Any other error is a *ReadError and is fatal: the stream
// position is lost and later members cannot be located.
func (w *Walker) Next() (Entry, error) {
	for {
		// Drain what is left of the current member so the counted offset
		// marks the end of its data.
		if _, err := io.Copy(io.Discard, w.tr); err != nil {
			return Entry{}, &ReadError{Path: w.path, Op: "read", Entry: w.current, Err: err}
		}
		w.dataEnd = (w.cr.n + 511) &^ 511

		hdr, err := w.tr.Next()
		if err == io.EOF {
			// archive/tar reports a stream cut on a block boundary, or one
			// missing a zero block, as a clean end.
			if w.cr.n < w.dataEnd+endMarker {
				return Entry{}, &ReadError{Path: w.path, Op: "next", Err: fmt.Errorf("missing end-of-archive marker: %w", io.ErrUnexpectedEOF)}
			}
			return Entry{}, io.EOF
		}
		if err != nil {
			return Entry{}, &ReadError{Path: w.path, Op: "next", Err: err}
		}
		w.current = hdr.Name

		switch hdr.Typeflag {
		case tar.TypeDir:
			continue
		case tar.TypeXGlobalHeader:
			// Metadata only; archive/tar already applied it.
			continue
		case tar.TypeReg:
		default:
			w.stats.LeafVisited++
			w.skip(&EntryError{Name: hdr.Name, Reason: fmt.Sprintf("not a regular file (type %q)", hdr.Typeflag)})
			continue
		}

		w.stats.LeafVisited++
		if w.opt.MaxEntryBytes > 0 && hdr.Size > w.opt.MaxEntryBytes {
			// The unread payload is drained at the top of the next pass.
			w.skip(&EntryError{Name: hdr.Name, Reason: fmt.Sprintf("size %d exceeds limit %d", hdr.Size, w.opt.MaxEntryBytes)})
			continue
		}

		payload := make([]byte, hdr.Size)
		if _, err := io.ReadFull(w.tr, payload); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return Entry{}, &ReadError{Path: w.path, Op: "read", Entry: hdr.Name, Err: err}
		}

		owner, path := splitMemberName(hdr.Name, w.opt.StripComponents)
		return Entry{Owner: owner, Path: path, Name: hdr.Name, Payload: payload}, nil
	}
}

// Stats returns a snapshot of the running counts.
func (w *Walker) Stats() Stats { return w.stats }

// Close releases the decompressor and the file handle. It is idempotent.
func (w *Walker) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	var first error
	if w.codec != nil {
		first = w.codec.Close()
	}
	if err := w.file.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

func (w *Walker) skip(err *EntryError) {
	w.stats.Skipped++
	if w.opt.OnSkip != nil {
		w.opt.OnSkip(err)
	}
}

// splitMemberName maps "maildir/allen-p/inbox/sub/1." (strip=1) to owner
// "allen-p" and path ["inbox", "sub"]. Names too shallow to carry an owner
// yield an empty owner and nil path.
func splitMemberName(name string, strip int) (string, []string) {
	name = strings.TrimPrefix(name, "./")
	parts := strings.Split(strings.Trim(name, "/"), "/")
	dirs := parts[:len(parts)-1]
	if len(dirs) <= strip {
		return "", nil
	}
	dirs = dirs[strip:]
	var path []string
	if len(dirs) > 1 {
		path = append(path, dirs[1:]...)
	}
	return dirs[0], path
}
