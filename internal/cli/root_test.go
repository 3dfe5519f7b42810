package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/comigor/folio-go/internal/errs"
	"github.com/comigor/folio-go/internal/model"
	"github.com/comigor/folio-go/internal/stub"
)

type env struct {
	backend    *stub.Server
	dir        string
	previewDir string
}

// newEnv points the CLI at a fresh stub backend and a private session db.
func newEnv(t *testing.T) *env {
	t.Helper()
	backend := stub.New()
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("FOLIO_API_BASE_URL", srv.URL)
	t.Setenv("FOLIO_SESSION_DB_PATH", filepath.Join(dir, "session.db"))
	t.Setenv("FOLIO_PREVIEW_DIR", filepath.Join(dir, "previews"))
	t.Setenv("FOLIO_SYNC_POLL_INTERVAL", "50ms")

	return &env{backend: backend, dir: dir, previewDir: filepath.Join(dir, "previews")}
}

func (e *env) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *env) login(t *testing.T) {
	t.Helper()
	e.backend.AddUser("Ada", "ada@example.com", "secret")
	_, err := e.run(t, "", "login", "--email", "ada@example.com", "--password", "secret")
	require.NoError(t, err)
}

func (e *env) resume(t *testing.T) string {
	t.Helper()
	path := filepath.Join(e.dir, "cv.txt")
	require.NoError(t, os.WriteFile(path, []byte("Ada Lovelace, analyst"), 0o644))
	return path
}

func TestLoginAndWhoami(t *testing.T) {
	e := newEnv(t)
	e.backend.AddUser("Ada", "ada@example.com", "secret")

	out, err := e.run(t, "", "login", "--email", "ada@example.com", "--password", "secret")
	require.NoError(t, err)
	require.Contains(t, out, "Logged in as ada@example.com")

	out, err = e.run(t, "", "whoami")
	require.NoError(t, err)
	require.Contains(t, out, "Ada")
	require.Contains(t, out, "<ada@example.com>")
}

func TestLogin_PromptsForMissingFields(t *testing.T) {
	e := newEnv(t)
	e.backend.AddUser("Ada", "ada@example.com", "secret")

	out, err := e.run(t, "ada@example.com\nsecret\n", "login")
	require.NoError(t, err)
	require.Contains(t, out, "Logged in as ada@example.com")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	e := newEnv(t)
	e.backend.AddUser("Ada", "ada@example.com", "secret")

	_, err := e.run(t, "", "login", "--email", "ada@example.com", "--password", "nope")
	require.Error(t, err)
	require.Equal(t, "Invalid credentials", errs.UserMessage(err))

	_, err = e.run(t, "", "whoami")
	require.ErrorIs(t, err, errs.ErrNoSession)
}

func TestSignup_PasswordMismatch(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(t, "", "signup", "--name", "Ada", "--email", "ada@example.com",
		"--password", "one", "--confirm", "two")
	require.Error(t, err)
	require.Equal(t, "Passwords do not match", errs.UserMessage(err))
	require.Zero(t, e.backend.Hits("POST /api/auth/signup"))
}

func TestSignupThenChats(t *testing.T) {
	e := newEnv(t)

	out, err := e.run(t, "", "signup", "--name", "Ada", "--email", "ada@example.com",
		"--password", "secret", "--confirm", "secret")
	require.NoError(t, err)
	require.Contains(t, out, "Account created for ada@example.com")

	out, err = e.run(t, "", "chats")
	require.NoError(t, err)
	require.Contains(t, out, "No chats yet")
}

func TestProtectedCommandsRequireLogin(t *testing.T) {
	e := newEnv(t)

	for _, args := range [][]string{{"chats"}, {"messages", "1"}, {"send", "1", "hi"}, {"deploy", "1"}} {
		_, err := e.run(t, "", args...)
		var ae *errs.AuthError
		require.ErrorAs(t, err, &ae, args)
		require.Contains(t, errs.UserMessage(err), "Run `folio login` first.")
	}
	require.Zero(t, e.backend.Hits("GET /api/chats"))
}

func TestLogout(t *testing.T) {
	e := newEnv(t)
	e.login(t)

	out, err := e.run(t, "", "logout")
	require.NoError(t, err)
	require.Contains(t, out, "Logged out")

	_, err = e.run(t, "", "chats")
	require.Error(t, err)
}

func TestNewChat_Validation(t *testing.T) {
	e := newEnv(t)
	e.login(t)

	_, err := e.run(t, "", "new")
	require.Error(t, err)
	msg := err.Error()
	require.Contains(t, msg, "Title is required.")
	require.Contains(t, msg, "Resume file is required.")
	require.Zero(t, e.backend.Hits("POST /api/chats"))
}

func TestChatLifecycle(t *testing.T) {
	e := newEnv(t)
	e.login(t)

	out, err := e.run(t, "", "new", "--title", "My site", "--resume", e.resume(t))
	require.NoError(t, err)
	require.Contains(t, out, "My site")
	require.Contains(t, out, "Portfolio page preview")
	_, err = os.Stat(filepath.Join(e.previewDir, "chat-1-message-0.html"))
	require.NoError(t, err)

	out, err = e.run(t, "", "chats")
	require.NoError(t, err)
	require.Contains(t, out, "My site")
	require.Contains(t, out, "Your portfolio page")

	out, err = e.run(t, "", "send", "1", "make", "it", "blue")
	require.NoError(t, err)
	require.Contains(t, out, "make it blue")
	msgs := e.backend.Messages(1)
	require.Len(t, msgs, 3)
	require.Equal(t, model.SenderBot, msgs[2].Sender)

	out, err = e.run(t, "", "deploy", "1")
	require.NoError(t, err)
	require.Contains(t, out, "Deployed: https://pages.example.com/pages/1/pages-1/index.html")

	out, err = e.run(t, "", "messages", "1")
	require.NoError(t, err)
	require.Contains(t, out, "live at https://pages.example.com")

	_, err = e.run(t, "", "send", "1", "more")
	require.Error(t, err)
	require.Equal(t, "This chat's page is already deployed.", errs.UserMessage(err))
}

func TestSend_WaitsForDelayedReply(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	_, err := e.run(t, "", "new", "--title", "Site", "--resume", e.resume(t))
	require.NoError(t, err)

	e.backend.Reply = stub.StaticReply("Sure, done.")
	e.backend.ReplyDelay = 100 * time.Millisecond

	out, err := e.run(t, "", "send", "--wait", "5s", "1", "hello")
	require.NoError(t, err)
	require.Contains(t, out, "hello")
	require.Contains(t, out, "Sure, done.")
}

func TestMessages_UnknownChat(t *testing.T) {
	e := newEnv(t)
	e.login(t)

	_, err := e.run(t, "", "messages", "42")
	require.Error(t, err)
	require.Equal(t, "Chat not found.", errs.UserMessage(err))

	_, err = e.run(t, "", "messages", "abc")
	require.Error(t, err)
	require.Contains(t, errs.UserMessage(err), "Invalid chat id")
}

func TestOpen_Interactive(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	_, err := e.run(t, "", "new", "--title", "Site", "--resume", e.resume(t))
	require.NoError(t, err)

	out, err := e.run(t, "hello there\n/bogus\n/deploy\n/quit\n", "open", "1")
	require.NoError(t, err)
	require.Contains(t, out, "hello there")
	require.Contains(t, out, "Unknown command /bogus")
	require.Contains(t, out, "Deployed: ")
	require.Equal(t, 1, e.backend.Hits("POST /api/chats/{id}/messages"))
}

func TestOpen_PicksChatFromPrompt(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	_, err := e.run(t, "", "new", "--title", "Site", "--resume", e.resume(t))
	require.NoError(t, err)

	// EOF after the chat number ends the session
	out, err := e.run(t, "1\n", "open")
	require.NoError(t, err)
	require.Contains(t, out, "#1")
	require.Contains(t, out, "Portfolio page preview")
}

func TestExecute_ReturnsErrorAndPrintsMessage(t *testing.T) {
	e := newEnv(t)
	root := NewRootCmd()
	root.SetArgs([]string{"chats"})
	root.SetOut(&bytes.Buffer{})

	var stderr bytes.Buffer
	err := execute(context.Background(), root, &stderr)
	require.ErrorIs(t, err, errs.ErrNoSession)
	require.Contains(t, stderr.String(), "Run `folio login` first.")
	require.Zero(t, e.backend.Hits("GET /api/chats"))
}
