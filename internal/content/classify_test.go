package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Kind
	}{
		{"fenced div", "```html<div>x</div>```", Document},
		{"plain", "hello", PlainText},
		{"empty", "", PlainText},
		{"whitespace", "   \n ", PlainText},
		{"full page", "```html\n<!DOCTYPE html><html><head><title>T</title></head><body><h1>T</h1></body></html>\n```", Document},
		{"unfenced markup", "<p>hi</p>", Document},
		{"script only", "<script>alert(1)</script>", PlainText},
		{"unknown tag keeps text", "<blink>hey</blink>", PlainText},
		{"text with angle", "a < b and c > d", PlainText},
		{"mixed leading text", "here you go <div>x</div>", Document},
		{"page wrapper without elements", "<html><body>x</body></html>", PlainText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Classify(tt.in))
		})
	}
}

func TestStrip(t *testing.T) {
	require.Equal(t, "<div>x</div>", Strip("  ```html\n<div>x</div>\n```  "))
	require.Equal(t, "<div>x</div>", Strip("<div>x</div>```"))
	require.Equal(t, "hello", Strip("hello"))
	require.Equal(t, "", Strip(""))
}

func TestPreview(t *testing.T) {
	require.Equal(t, PageLabel, Preview("```html<div>x</div>```"))
	require.Equal(t, "short", Preview("short"))
	require.Equal(t, "abcdefghijklmnopqrst", Preview("abcdefghijklmnopqrstuvwxyz"))
	require.Equal(t, "", Preview(""))
}

func TestClockTime(t *testing.T) {
	require.Equal(t, "10:11", ClockTime("Tue, 15 Oct 2024 10:11:12 GMT"))
	require.Equal(t, "", ClockTime(""))
	require.Equal(t, "", ClockTime("yesterday"))
}

func TestWritePreview(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "previews")
	path, err := WritePreview(dir, 4, 2, "```html\n<h1>Hi</h1>\n```")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "chat-4-message-2.html"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "<h1>Hi</h1>", string(data))
}

func TestKindString(t *testing.T) {
	require.Equal(t, "document", Document.String())
	require.Equal(t, "text", PlainText.String())
}
