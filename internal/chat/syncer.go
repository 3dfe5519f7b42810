// Package chat keeps the client's view of chats and messages in step with
// the backend. While a chat is open it polls on a fixed interval and refetches
// when the last message is from the user (a bot reply may be pending).
// Every fetch replaces the message list wholesale.
package chat

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qmuntal/stateless"

	"github.com/comigor/folio-go/internal/content"
	"github.com/comigor/folio-go/internal/errs"
	"github.com/comigor/folio-go/internal/logger"
	"github.com/comigor/folio-go/internal/model"
)

// DefaultInterval is the poll period while a chat is open.
const DefaultInterval = 5 * time.Second

// Backend is the subset of the API client the syncer drives.
type Backend interface {
	ListChats(ctx context.Context) ([]model.Chat, error)
	CreateChat(ctx context.Context, in model.NewChat) (*model.Chat, error)
	ListMessages(ctx context.Context, chatID int) ([]model.Message, error)
	SendMessage(ctx context.Context, chatID int, text string) error
	Deploy(ctx context.Context, chatID int, html string) (string, error)
}

// View is an immutable snapshot of the chat screen.
type View struct {
	State    State
	Chats    []model.Chat
	Current  *model.Chat
	Messages []model.Message
	// Loaded is true once the current chat's messages were fetched at least
	// once. An empty list with Loaded false means "not fetched yet".
	Loaded bool
	Err    string
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithInterval sets the poll period.
func WithInterval(d time.Duration) Option {
	return func(s *Syncer) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithTicker replaces the ticker factory.
func WithTicker(f TickerFunc) Option {
	return func(s *Syncer) { s.newTicker = f }
}

// WithClock replaces the clock used to stamp optimistic messages.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) { s.now = now }
}

// Syncer owns the chat list and the currently open chat.
type Syncer struct {
	backend   Backend
	interval  time.Duration
	newTicker TickerFunc
	now       func() time.Time

	// scopeMu serializes Select and Close so poll scopes never overlap.
	scopeMu sync.Mutex

	mu        sync.Mutex
	fsm       *stateless.StateMachine
	chats     []model.Chat
	current   *model.Chat
	messages  []model.Message
	errMsg    string
	gen       uint64 // bumped whenever the open chat scope changes
	cancel    context.CancelFunc
	done      chan struct{}
	listeners []func(View)

	afterTick func(refetched bool) // test hook
}

// New creates a Syncer with nothing selected.
func New(backend Backend, opts ...Option) *Syncer {
	s := &Syncer{
		backend:   backend,
		interval:  DefaultInterval,
		newTicker: newRealTicker,
		now:       time.Now,
		fsm:       newViewMachine(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NeedsRefetch is the poll predicate: refetch when nothing is materialized
// or the user spoke last.
func NeedsRefetch(msgs []model.Message) bool {
	if len(msgs) == 0 {
		return true
	}
	return msgs[len(msgs)-1].Sender == model.SenderUser
}

// OnChange registers fn to receive a snapshot after every change. fn may be
// called from the poll goroutine.
func (s *Syncer) OnChange(fn func(View)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// View returns the current snapshot.
func (s *Syncer) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Refresh replaces the chat list from the backend.
func (s *Syncer) Refresh(ctx context.Context) error {
	chats, err := s.backend.ListChats(ctx)
	s.mu.Lock()
	if err != nil {
		s.errMsg = errs.UserMessage(err)
	} else {
		s.chats = chats
	}
	v := s.viewLocked()
	s.mu.Unlock()
	s.emit(v)
	return err
}

// Select opens chat: the previous chat's poll scope is torn down, the view
// shows the chat with an unloaded empty list, its messages are fetched
// immediately and polling starts for it.
func (s *Syncer) Select(ctx context.Context, chat model.Chat) error {
	s.scopeMu.Lock()
	s.stopScope()

	scopeCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.gen++
	gen := s.gen
	if err := s.fsm.Fire(TriggerSelect); err != nil {
		logger.L.Error("view transition failed", "trigger", TriggerSelect, "error", err)
	}
	c := chat
	s.current = &c
	s.messages = []model.Message{}
	s.cancel = cancel
	s.done = done
	v := s.viewLocked()
	s.mu.Unlock()
	s.emit(v)

	ticker := s.newTicker(s.interval)
	go s.poll(scopeCtx, gen, chat.ID, ticker, done)
	s.scopeMu.Unlock()

	logger.L.Debug("chat selected", "chat_id", chat.ID, "interval", s.interval)
	return s.fetch(scopeCtx, gen, chat.ID)
}

// SelectID opens the chat with the given id from the current list.
func (s *Syncer) SelectID(ctx context.Context, id int) error {
	s.mu.Lock()
	idx := slices.IndexFunc(s.chats, func(c model.Chat) bool { return c.ID == id })
	var chat model.Chat
	if idx >= 0 {
		chat = s.chats[idx]
	}
	s.mu.Unlock()
	if idx < 0 {
		return errs.Invalid("chat", "Chat not found.")
	}
	return s.Select(ctx, chat)
}

// Close deselects the current chat and stops polling.
func (s *Syncer) Close() {
	s.scopeMu.Lock()
	defer s.scopeMu.Unlock()
	s.stopScope()

	s.mu.Lock()
	s.gen++
	if err := s.fsm.Fire(TriggerClose); err != nil {
		logger.L.Error("view transition failed", "trigger", TriggerClose, "error", err)
	}
	s.current = nil
	s.messages = nil
	v := s.viewLocked()
	s.mu.Unlock()
	s.emit(v)
}

// Send appends an optimistic user message, posts it, then forces one
// refetch whether or not the post succeeded.
func (s *Syncer) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return errs.Invalid("message", "Message is empty.")
	}

	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return errs.Invalid("chat", "Select a chat first.")
	}
	if s.current.Deployed() {
		s.mu.Unlock()
		return errs.Invalid("chat", "This chat's page is already deployed.")
	}
	gen, chatID := s.gen, s.current.ID
	s.messages = append(slices.Clone(s.messages), model.Message{
		Sender:  model.SenderUser,
		Text:    text,
		Time:    s.now().Format("15:04:05"),
		LocalID: uuid.NewString(),
	})
	v := s.viewLocked()
	s.mu.Unlock()
	s.emit(v)

	sendErr := s.backend.SendMessage(ctx, chatID, text)
	if sendErr != nil {
		s.fail(gen, sendErr)
	} else {
		s.clearErr(gen)
	}

	fetchErr := s.fetch(ctx, gen, chatID)
	if sendErr != nil {
		return sendErr
	}
	return fetchErr
}

// Create validates the form, creates the chat and opens it.
func (s *Syncer) Create(ctx context.Context, in model.NewChat) error {
	var problems []error
	if strings.TrimSpace(in.Title) == "" {
		problems = append(problems, errs.Invalid("title", "Title is required."))
	}
	if len(in.Resume) == 0 {
		problems = append(problems, errs.Invalid("resume", "Resume file is required."))
	}
	if len(problems) > 0 {
		return errors.Join(problems...)
	}

	chat, err := s.backend.CreateChat(ctx, in)
	if err != nil {
		s.mu.Lock()
		s.errMsg = errs.UserMessage(err)
		v := s.viewLocked()
		s.mu.Unlock()
		s.emit(v)
		return err
	}

	s.mu.Lock()
	s.chats = append(slices.Clone(s.chats), *chat)
	s.errMsg = ""
	s.mu.Unlock()

	return s.Select(ctx, *chat)
}

// Deploy publishes the last bot message of the open chat and returns the
// page URL.
func (s *Syncer) Deploy(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return "", errs.Invalid("chat", "Select a chat first.")
	}
	gen, chatID := s.gen, s.current.ID
	last, found := lastBot(s.messages)
	s.mu.Unlock()
	if !found {
		err := errs.Invalid("chat", "No bot messages to deploy.")
		s.fail(gen, err)
		return "", err
	}
	html := content.Strip(last.Text)

	url, err := s.backend.Deploy(ctx, chatID, html)
	if err != nil {
		s.fail(gen, err)
		return "", err
	}

	s.mu.Lock()
	for i := range s.chats {
		if s.chats[i].ID == chatID {
			s.chats = slices.Clone(s.chats)
			s.chats[i].PageURL = url
			break
		}
	}
	if gen == s.gen && s.current != nil {
		c := *s.current
		c.PageURL = url
		s.current = &c
		s.errMsg = ""
	}
	v := s.viewLocked()
	s.mu.Unlock()
	s.emit(v)
	logger.L.Info("page deployed", "chat_id", chatID, "url", url)
	return url, nil
}

func lastBot(msgs []model.Message) (model.Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Sender == model.SenderBot {
			return msgs[i], true
		}
	}
	return model.Message{}, false
}

// poll runs until ctx ends, evaluating the refetch predicate on every tick.
func (s *Syncer) poll(ctx context.Context, gen uint64, chatID int, ticker Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			refetch := s.shouldRefetch(gen)
			if refetch {
				logger.L.Debug("poll refetch", "chat_id", chatID)
				if err := s.fetch(ctx, gen, chatID); err != nil {
					logger.L.Debug("poll fetch failed", "chat_id", chatID, "error", err)
				}
			}
			if s.afterTick != nil {
				s.afterTick(refetch)
			}
		}
	}
}

func (s *Syncer) shouldRefetch(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.gen && NeedsRefetch(s.messages)
}

// fetch replaces the message list. Results for a scope that has since ended
// are dropped.
func (s *Syncer) fetch(ctx context.Context, gen uint64, chatID int) error {
	msgs, err := s.backend.ListMessages(ctx, chatID)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		logger.L.Debug("dropping stale fetch", "chat_id", chatID)
		return nil
	}
	if err != nil {
		s.errMsg = errs.UserMessage(err)
	} else {
		s.messages = msgs
		if ok, _ := s.fsm.IsInState(StateLoading); ok {
			if ferr := s.fsm.Fire(TriggerLoaded); ferr != nil {
				logger.L.Error("view transition failed", "trigger", TriggerLoaded, "error", ferr)
			}
		}
	}
	v := s.viewLocked()
	s.mu.Unlock()
	s.emit(v)
	return err
}

// stopScope cancels the open chat's poll loop and waits for it to exit.
// Callers hold scopeMu.
func (s *Syncer) stopScope() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Syncer) fail(gen uint64, err error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.errMsg = errs.UserMessage(err)
	v := s.viewLocked()
	s.mu.Unlock()
	s.emit(v)
}

func (s *Syncer) clearErr(gen uint64) {
	s.mu.Lock()
	if gen == s.gen {
		s.errMsg = ""
	}
	s.mu.Unlock()
}

func (s *Syncer) viewLocked() View {
	v := View{
		State:    s.fsm.MustState().(State),
		Chats:    s.chats,
		Messages: s.messages,
		Err:      s.errMsg,
	}
	v.Loaded = v.State == StateReady
	if s.current != nil {
		c := *s.current
		v.Current = &c
	}
	return v
}

func (s *Syncer) emit(v View) {
	s.mu.Lock()
	listeners := s.listeners
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(v)
	}
}
