package file

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeTempFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fields.txt")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestReadList_Basic(t *testing.T) {
	t.Parallel()

	content := `
# declared header fields
Message-ID
   # indented comment
Date

   X-cc
X-Cc
`
	path := writeTempFile(t, content)

	got, err := ReadList(path)
	if err != nil {
		t.Fatalf("ReadList error: %v", err)
	}

	want := []string{"Message-ID", "Date", "X-cc", "X-Cc"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ReadList(%q) = %#v, want %#v", path, got, want)
	}
}

func TestReadList_EmptyFile(t *testing.T) {
	t.Parallel()

	path := writeTempFile(t, "")
	got, err := ReadList(path)
	if err != nil {
		t.Fatalf("ReadList error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty slice, got %#v", got)
	}
}

func TestReadList_Duplicate(t *testing.T) {
	t.Parallel()

	path := writeTempFile(t, "From\nTo\nFrom\n")
	_, err := ReadList(path)
	if err == nil {
		t.Fatalf("expected duplicate error, got nil")
	}
	if !strings.Contains(err.Error(), `duplicate name "From"`) {
		t.Fatalf("error %q does not name the duplicate", err)
	}
}

func TestReadList_FileNotFound(t *testing.T) {
	t.Parallel()

	_, err := ReadList("does-not-exist-12345.txt")
	if err == nil {
		t.Fatalf("expected error for missing file, got nil")
	}
}
