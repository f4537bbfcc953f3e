// Package archivetest builds small tar containers for tests.
package archivetest

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Member is one tar member. A Name ending in "/" is written as a directory.
// Link, when set, writes a symlink instead of a regular file.
type Member struct {
	Name string
	Body string
	Link string
}

// Codec selects the outer compression of the container.
type Codec int

const (
	Plain Codec = iota
	Gzip
	Zstd
)

// modTime is fixed so containers are byte-identical across test runs.
var modTime = time.Date(2001, 5, 14, 0, 0, 0, 0, time.UTC)

// Bytes renders members into a container.
func Bytes(t testing.TB, codec Codec, members ...Member) []byte {
	t.Helper()

	var raw bytes.Buffer
	tw := tar.NewWriter(&raw)
	for _, m := range members {
		hdr := &tar.Header{Name: m.Name, Mode: 0o644, ModTime: modTime}
		switch {
		case m.Link != "":
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = m.Link
		case len(m.Name) > 0 && m.Name[len(m.Name)-1] == '/':
			hdr.Typeflag = tar.TypeDir
			hdr.Mode = 0o755
		default:
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(m.Body))
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("tar header %q: %v", m.Name, err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := io.WriteString(tw, m.Body); err != nil {
				t.Fatalf("tar body %q: %v", m.Name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}

	switch codec {
	case Gzip:
		var out bytes.Buffer
		zw := gzip.NewWriter(&out)
		if _, err := zw.Write(raw.Bytes()); err != nil {
			t.Fatalf("gzip: %v", err)
		}
		if err := zw.Close(); err != nil {
			t.Fatalf("gzip close: %v", err)
		}
		return out.Bytes()
	case Zstd:
		var out bytes.Buffer
		zw, err := zstd.NewWriter(&out)
		if err != nil {
			t.Fatalf("zstd: %v", err)
		}
		if _, err := zw.Write(raw.Bytes()); err != nil {
			t.Fatalf("zstd: %v", err)
		}
		if err := zw.Close(); err != nil {
			t.Fatalf("zstd close: %v", err)
		}
		return out.Bytes()
	default:
		return raw.Bytes()
	}
}

// Write renders members into dir/name and returns the path.
func Write(t testing.TB, dir, name string, codec Codec, members ...Member) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, Bytes(t, codec, members...), 0o644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	return p
}

// Mail renders a minimal message with the given header lines and body.
func Mail(body string, headers ...string) string {
	var b bytes.Buffer
	for _, h := range headers {
		b.WriteString(h)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(body)
	return b.String()
}
