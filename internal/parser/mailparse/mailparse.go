// Package mailparse decodes raw maildir payloads into a header map and a body.
//
// Decoding is total: the corpus predates UTF-8 adoption, so payloads are
// decoded with a fixed single-byte charmap in which every byte value maps to
// a character. The header/body split never fails either; the worst case is a
// header-less message whose whole payload is body.
package mailparse

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"mailcorpus/internal/archive"
)

// Message is a parsed document.
type Message struct {
	// Header holds one value per header name. Names are case-preserved;
	// for a repeated name the last occurrence wins.
	Header map[string]string
	Body   string

	Owner string
	Path  []string
	Name  string
}

// encodings are the single-byte charmaps accepted by NewParser. Every entry
// must map all 256 byte values.
var encodings = map[string]*charmap.Charmap{
	"iso-8859-1":   charmap.ISO8859_1,
	"latin1":       charmap.ISO8859_1,
	"latin-1":      charmap.ISO8859_1,
	"windows-1252": charmap.Windows1252,
	"cp1252":       charmap.Windows1252,
	"iso-8859-15":  charmap.ISO8859_15,
}

// DefaultEncoding is the corpus encoding.
const DefaultEncoding = "iso-8859-1"

// Parser decodes and splits payloads. A Parser is safe for concurrent use;
// each call allocates its own decoder.
type Parser struct {
	cm   *charmap.Charmap
	name string
}

// NewParser returns a Parser for the named encoding ("" means
// DefaultEncoding).
func NewParser(enc string) (*Parser, error) {
	if enc == "" {
		enc = DefaultEncoding
	}
	cm, ok := encodings[strings.ToLower(enc)]
	if !ok {
		return nil, fmt.Errorf("mailparse: unsupported encoding %q (want one of %s)", enc, strings.Join(SupportedEncodings(), ", "))
	}
	return &Parser{cm: cm, name: strings.ToLower(enc)}, nil
}

// Encoding returns the normalised encoding name.
func (p *Parser) Encoding() string { return p.name }

// SupportedEncodings lists the names NewParser accepts, sorted.
func SupportedEncodings() []string {
	out := make([]string, 0, len(encodings))
	for k := range encodings {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Parse decodes payload and splits it into header map and body.
func (p *Parser) Parse(payload []byte) Message {
	text := decode(p.cm.NewDecoder(), payload)
	header, body := split(text)
	return Message{Header: header, Body: body}
}

// ParseEntry parses an archive entry and carries its owner, collection path
// and member name through to the Message.
func (p *Parser) ParseEntry(e archive.Entry) Message {
	m := p.Parse(e.Payload)
	m.Owner, m.Path, m.Name = e.Owner, e.Path, e.Name
	return m
}

func decode(dec *encoding.Decoder, b []byte) string {
	s, err := dec.Bytes(b)
	if err == nil {
		return string(s)
	}
	// Unreachable for the registered charmaps; widen byte-by-byte so the
	// stage stays total anyway.
	r := make([]rune, len(b))
	for i, c := range b {
		r[i] = rune(c)
	}
	return string(r)
}

// split implements the blank-line-terminated header convention:
//
//   - CRLF line endings are normalised to LF first.
//   - Header lines are "Name: value"; a line starting with space or tab
//     continues the previous value (the newline is kept).
//   - The first empty line ends the header block; the rest is body.
//   - A payload with no empty line at all is treated as header-less body.
//   - A line inside the header block that is neither a header nor a
//     continuation ends the block early; it and everything after it are body.
func split(text string) (map[string]string, string) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	header := make(map[string]string)

	var block, body string
	switch {
	case strings.HasPrefix(text, "\n"):
		return header, text[1:]
	default:
		i := strings.Index(text, "\n\n")
		if i < 0 {
			return header, text
		}
		block, body = text[:i], text[i+2:]
	}

	lines := strings.Split(block, "\n")
	last := ""
	for n, line := range lines {
		if (line[0] == ' ' || line[0] == '\t') && last != "" {
			header[last] += "\n" + line
			continue
		}
		name, value, ok := headerLine(line)
		if !ok {
			rest := strings.Join(lines[n:], "\n")
			return header, rest + "\n\n" + body
		}
		header[name] = value
		last = name
	}
	return header, body
}

// headerLine splits "Name: value". Field names are printable ASCII without
// spaces or colons (RFC 5322 section 2.2); trailing blanks before the colon are
// tolerated.
func headerLine(line string) (string, string, bool) {
	i := strings.IndexByte(line, ':')
	if i <= 0 {
		return "", "", false
	}
	name := strings.TrimRight(line[:i], " \t")
	if name == "" {
		return "", "", false
	}
	for j := 0; j < len(name); j++ {
		c := name[j]
		if c <= ' ' || c > '~' {
			return "", "", false
		}
	}
	value := strings.TrimLeft(line[i+1:], " \t")
	return name, value, true
}
