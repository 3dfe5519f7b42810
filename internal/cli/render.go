package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/comigor/folio-go/internal/chat"
	"github.com/comigor/folio-go/internal/content"
	"github.com/comigor/folio-go/internal/logger"
	"github.com/comigor/folio-go/internal/model"
)

var (
	accent = lipgloss.Color("99")
	muted  = lipgloss.Color("245")

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(accent)
	mutedStyle    = lipgloss.NewStyle().Foreground(muted)
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Background(accent).Foreground(lipgloss.Color("231")).Padding(0, 1)
	rowStyle      = lipgloss.NewStyle().Padding(0, 1)
	userStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Background(accent).Padding(0, 1)
	botStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Background(lipgloss.Color("61")).Padding(0, 1)
	pageStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accent).Padding(0, 1)
)

// renderer prints chat state. It tracks how much of the open chat has been
// printed so polling only shows what is new.
type renderer struct {
	w          io.Writer
	previewDir string

	mu      sync.Mutex
	chatID  int
	printed int
	lastErr string
}

func newRenderer(w io.Writer, previewDir string) *renderer {
	return &renderer{w: w, previewDir: previewDir}
}

// chatList prints one row per chat: title, one-line preview and clock time.
func (r *renderer) chatList(chats []model.Chat, currentID int) {
	if len(chats) == 0 {
		fmt.Fprintln(r.w, mutedStyle.Render("No chats yet. Create one with `folio new`."))
		return
	}
	for _, c := range chats {
		style := rowStyle
		if c.ID == currentID {
			style = selectedStyle
		}
		line := fmt.Sprintf("#%-3d %s", c.ID, c.Title)
		meta := content.Preview(c.LastMessage)
		if t := content.ClockTime(c.LastUpdated); t != "" {
			meta += "  " + t
		}
		if c.Deployed() {
			meta += "  " + c.PageURL
		}
		fmt.Fprintln(r.w, style.Render(line)+"  "+mutedStyle.Render(meta))
	}
}

// header prints the open chat's title and deploy state.
func (r *renderer) header(c *model.Chat) {
	if c == nil {
		fmt.Fprintln(r.w, mutedStyle.Render("Select a chat to start messaging"))
		return
	}
	status := "not deployed"
	if c.Deployed() {
		status = "live at " + c.PageURL
	}
	fmt.Fprintln(r.w, titleStyle.Render(c.Title)+"  "+mutedStyle.Render(status))
}

// update prints the messages of v that were not printed yet. A shorter list
// than before (an optimistic message replaced by the server's view) resets
// the counter without reprinting.
func (r *renderer) update(v chat.View) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v.Err != "" && v.Err != r.lastErr {
		fmt.Fprintln(r.w, errorStyle.Render(v.Err))
	}
	r.lastErr = v.Err

	if v.Current == nil {
		r.chatID, r.printed = 0, 0
		return
	}
	if v.Current.ID != r.chatID {
		r.chatID, r.printed = v.Current.ID, 0
	}
	if !v.Loaded && len(v.Messages) == 0 {
		return
	}
	if len(v.Messages) < r.printed {
		r.printed = len(v.Messages)
	}
	for i := r.printed; i < len(v.Messages); i++ {
		r.message(v.Current.ID, i, v.Messages[i])
	}
	r.printed = len(v.Messages)
}

func (r *renderer) message(chatID, index int, m model.Message) {
	stamp := mutedStyle.Render(m.Time)
	if m.Pending() {
		stamp = mutedStyle.Render(m.Time + " sending")
	}
	if content.IsDocument(m.Text) {
		body := "Portfolio page preview"
		if path, err := content.WritePreview(r.previewDir, chatID, index, m.Text); err != nil {
			logger.L.Warn("failed to write preview", "chat_id", chatID, "error", err)
		} else {
			body += "\nfile://" + path
		}
		fmt.Fprintln(r.w, pageStyle.Render(body))
		fmt.Fprintln(r.w, stamp)
		return
	}
	style, who := botStyle, "bot"
	if m.Sender == model.SenderUser {
		style, who = userStyle, "you"
	}
	text := strings.TrimSpace(m.Text)
	fmt.Fprintf(r.w, "%s %s\n%s\n", mutedStyle.Render(who), style.Render(text), stamp)
}
