// Package content decides how a message body is rendered: as an embedded
// page preview or as plain chat text.
package content

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Kind is the rendering class of a message body.
type Kind int

const (
	PlainText Kind = iota
	Document
)

func (k Kind) String() string {
	if k == Document {
		return "document"
	}
	return "text"
}

const (
	fenceOpen  = "```html"
	fenceClose = "```"

	// PageLabel replaces document bodies in one-line previews.
	PageLabel = "Your portfolio page"

	previewRunes = 20
)

var (
	policy  = bluemonday.UGCPolicy()
	bodyCtx = &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
)

// Strip removes the code fence the bot wraps generated markup in.
func Strip(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, fenceOpen)
	s = strings.TrimSuffix(s, fenceClose)
	return strings.TrimSpace(s)
}

// Classify reports whether text is a document or plain text. The body is
// sanitized before it is parsed.
func Classify(text string) Kind {
	clean := policy.Sanitize(Strip(text))
	if clean == "" {
		return PlainText
	}
	nodes, err := html.ParseFragment(strings.NewReader(clean), bodyCtx)
	if err != nil {
		return PlainText
	}
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			return Document
		}
	}
	return PlainText
}

// IsDocument is shorthand for Classify(text) == Document.
func IsDocument(text string) bool {
	return Classify(text) == Document
}

// Preview is the one-line summary shown in the chat list.
func Preview(text string) string {
	if IsDocument(text) {
		return PageLabel
	}
	r := []rune(text)
	if len(r) > previewRunes {
		r = r[:previewRunes]
	}
	return string(r)
}

// ClockTime extracts HH:MM from a backend timestamp such as
// "Tue, 15 Oct 2024 10:11:12 GMT". Unparseable input yields "".
func ClockTime(timestamp string) string {
	if timestamp == "" {
		return ""
	}
	t, err := http.ParseTime(timestamp)
	if err != nil {
		return ""
	}
	return t.Format("15:04")
}

// WritePreview writes a document body to dir so it can be opened in a
// browser, isolated from the terminal. It returns the file path.
func WritePreview(dir string, chatID, index int, text string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("chat-%d-message-%d.html", chatID, index))
	if err := os.WriteFile(path, []byte(Strip(text)), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
