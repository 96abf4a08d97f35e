// Package hosts merges a remote host list into the marker-delimited block of
// a hosts file while leaving the user-owned content around it intact.
package hosts

import (
	"fmt"
	"strings"
)

// Markers delimiting the managed block. The end marker carries a trailing
// space; existing files written by earlier versions depend on it.
const (
	StartMarker = "#GitHub Host Set Start"
	EndMarker   = "#GitHub Host Set End "
)

const utf8BOM = "\ufeff"

// Document is a hosts file split around its managed block.
type Document struct {
	// Before is the text preceding the first start marker, or the whole
	// document when no start marker exists.
	Before string

	// After is the text following the end marker of the last marker
	// fragment that contains one. It is empty when no fragment does.
	After string

	// HasBlock reports whether a start marker was found.
	HasBlock bool
}

// Split partitions text around the managed block.
//
// Every fragment following a start marker is inspected; the last one that
// contains an end marker provides After (the text past its last end
// marker). Fragments in between, including duplicated or truncated blocks
// left by a corrupted earlier write, are discarded.
func Split(text string) Document {
	parts := strings.Split(text, StartMarker)
	doc := Document{Before: parts[0], HasBlock: len(parts) > 1}

	for _, part := range parts[1:] {
		idx := strings.LastIndex(part, EndMarker)
		if idx < 0 {
			continue
		}
		doc.After = part[idx+len(EndMarker):]
	}
	return doc
}

// Result is the outcome of a successful merge.
type Result struct {
	Content  []byte
	Encoding string
}

// Merger computes new hosts file content.
type Merger struct {
	encodings []Encoding
}

// NewMerger creates a Merger that decodes the existing file with the given
// encodings in order. With no encodings, DefaultEncodings is used.
func NewMerger(encodings ...Encoding) *Merger {
	if len(encodings) == 0 {
		encodings = DefaultEncodings()
	}
	return &Merger{encodings: encodings}
}

// Encodings returns the decode preference order.
func (m *Merger) Encodings() []Encoding {
	out := make([]Encoding, len(m.encodings))
	copy(out, m.encodings)
	return out
}

// Merge replaces the managed block of old with remote.
//
// The before region and the remote text are sanitized line by line; the
// after region is copied unchanged. The output is re-encoded with the
// encoding the old content was decoded with. Merging the output again with
// the same remote text yields identical bytes.
func (m *Merger) Merge(old []byte, remote string) (Result, error) {
	if strings.TrimSpace(remote) == "" {
		return Result{}, ErrEmptyRemoteContent
	}

	text, enc, err := detect(old, m.encodings)
	if err != nil {
		return Result{}, err
	}

	bom := enc.Name == UTF8.Name && strings.HasPrefix(text, utf8BOM)
	if bom {
		text = text[len(utf8BOM):]
	}

	nl := lineEnding(text)
	doc := Split(text)

	block := sanitize(remote, nl)
	if block == "" {
		return Result{}, fmt.Errorf("%w: no lines left after sanitization", ErrEmptyRemoteContent)
	}
	before := sanitize(doc.Before, nl)

	var b strings.Builder
	b.Grow(len(text) + len(remote))
	if bom {
		b.WriteString(utf8BOM)
	}
	if before != "" {
		b.WriteString(before)
		b.WriteString(nl)
		b.WriteString(nl)
	}
	b.WriteString(StartMarker)
	b.WriteString(nl)
	b.WriteString(block)
	b.WriteString(nl)
	b.WriteString(EndMarker)
	if doc.After != "" {
		if !strings.HasPrefix(doc.After, "\n") && !strings.HasPrefix(doc.After, "\r\n") {
			b.WriteString(nl)
		}
		b.WriteString(doc.After)
	}

	content, err := enc.Encode(b.String())
	if err != nil {
		return Result{}, err
	}
	return Result{Content: content, Encoding: enc.Name}, nil
}

// lineEnding returns CRLF when the document already uses it, LF otherwise.
func lineEnding(text string) string {
	if strings.Contains(text, "\r\n") {
		return "\r\n"
	}
	return "\n"
}
