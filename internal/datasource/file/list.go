package file

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReadList reads a plain-text field list, one header name per line, and
// returns the names in file order.
//
// Blank lines and lines starting with '#' are skipped. Names keep their case
// ("X-cc" and "X-Cc" are different header names in the corpus). A name that
// appears twice is an error, since a declared schema cannot hold the same
// column twice.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	seen := make(map[string]int)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if first, dup := seen[line]; dup {
			return nil, fmt.Errorf("%s:%d: duplicate name %q (first on line %d)", path, lineNo, line, first)
		}
		seen[line] = lineNo
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
