// Package stub is an in-memory stand-in for the portfolio backend. It serves
// the same REST surface so the client can be exercised locally and in tests.
package stub

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/comigor/folio-go/internal/logger"
	"github.com/comigor/folio-go/internal/model"
)

// ReplyFunc produces the bot's answer for a chat given its messages so far.
type ReplyFunc func(chat model.Chat, history []model.Message) string

type account struct {
	profile  model.Profile
	password string
}

type chatRecord struct {
	chat        model.Chat
	owner       string
	description string
	resume      []byte
	messages    []model.Message
}

// Server keeps users, chats and messages in memory.
type Server struct {
	mu       sync.Mutex
	accounts map[string]*account // by email
	tokens   map[string]string   // token -> email
	chats    map[int]*chatRecord
	nextUser int
	nextChat int
	hits     map[string]int

	// Reply generates bot messages. Defaults to a small HTML page.
	Reply ReplyFunc
	// ReplyDelay defers the bot reply so a user message stays last for a while.
	ReplyDelay time.Duration
	// PageBase is the prefix of deployed page URLs.
	PageBase string
	// Now stamps messages; defaults to time.Now.
	Now func() time.Time
}

// New creates an empty stub backend.
func New() *Server {
	return &Server{
		accounts: make(map[string]*account),
		tokens:   make(map[string]string),
		chats:    make(map[int]*chatRecord),
		hits:     make(map[string]int),
		Reply:    DefaultReply,
		PageBase: "https://pages.example.com",
		Now:      time.Now,
	}
}

// DefaultReply wraps a minimal portfolio page in the fence the bot uses.
func DefaultReply(chat model.Chat, history []model.Message) string {
	return fmt.Sprintf("```html\n<!DOCTYPE html><html><head><title>%s</title></head><body><h1>%s</h1><p>Revision %d</p></body></html>\n```",
		chat.Title, chat.Title, len(history)/2+1)
}

// StaticReply always answers with text.
func StaticReply(text string) ReplyFunc {
	return func(model.Chat, []model.Message) string { return text }
}

// Handler returns the chi router serving the backend API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.count)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/signup", s.handleSignup)

		r.Group(func(r chi.Router) {
			r.Use(s.requireToken)
			r.Get("/auth/user", s.handleUser)
			r.Get("/chats", s.handleListChats)
			r.Post("/chats", s.handleCreateChat)
			r.Get("/chats/{id}/messages", s.handleListMessages)
			r.Post("/chats/{id}/messages", s.handleSendMessage)
			r.Post("/deploy", s.handleDeploy)
		})
	})
	return r
}

// AddUser registers an account and returns a valid token for it.
func (s *Server) AddUser(name, email, password string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addAccountLocked(name, email, password)
	return s.issueLocked(email)
}

// AddMessage appends a message to a chat directly.
func (s *Server) AddMessage(chatID int, m model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.chats[chatID]; ok {
		if m.Time == "" {
			m.Time = s.stamp()
		}
		rec.messages = append(rec.messages, m)
	}
}

// Messages returns a copy of a chat's messages.
func (s *Server) Messages(chatID int) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.chats[chatID]
	if !ok {
		return nil
	}
	return append([]model.Message(nil), rec.messages...)
}

// Hits reports how many requests matched a route, e.g. "GET /api/chats".
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		pattern := chi.RouteContext(r.Context()).RoutePattern()
		s.mu.Lock()
		s.hits[r.Method+" "+pattern]++
		s.mu.Unlock()
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		email, known := s.tokens[token]
		s.mu.Unlock()
		if !ok || !known {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "Missing or invalid token"})
			return
		}
		next.ServeHTTP(w, r.WithContext(withEmail(r.Context(), email)))
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[in.Email]
	if !ok || acc.password != in.Password {
		logger.L.Debug("stub login failed", "email", in.Email)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": s.issueLocked(in.Email)})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[in.Email]; exists {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "Email already exists"})
		return
	}
	s.addAccountLocked(in.Name, in.Email, in.Password)
	writeJSON(w, http.StatusCreated, map[string]string{"token": s.issueLocked(in.Email)})
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	acc := s.accounts[emailFrom(r.Context())]
	s.mu.Unlock()
	if acc == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "User not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": acc.profile})
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	email := emailFrom(r.Context())
	s.mu.Lock()
	defer s.mu.Unlock()
	chats := make([]model.Chat, 0)
	for id := 1; id <= s.nextChat; id++ {
		rec, ok := s.chats[id]
		if !ok || rec.owner != email {
			continue
		}
		c := rec.chat
		if n := len(rec.messages); n > 0 {
			c.LastMessage = rec.messages[n-1].Text
			c.LastUpdated = rec.messages[n-1].Time
		}
		chats = append(chats, c)
	}
	writeJSON(w, http.StatusOK, map[string]any{"chats": chats})
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required fields"})
		return
	}
	title := r.FormValue("title")
	file, _, err := r.FormFile("resume")
	if title == "" || err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required fields"})
		return
	}
	defer file.Close()
	resume, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to upload resume"})
		return
	}

	s.mu.Lock()
	s.nextChat++
	rec := &chatRecord{
		chat:        model.Chat{ID: s.nextChat, Title: title},
		owner:       emailFrom(r.Context()),
		description: r.FormValue("additionalDescription"),
		resume:      resume,
	}
	s.chats[rec.chat.ID] = rec
	reply := s.Reply(rec.chat, nil)
	rec.messages = append(rec.messages, model.Message{Sender: model.SenderBot, Text: reply, Time: s.stamp()})
	out := rec.chat
	msgs := append([]model.Message(nil), rec.messages...)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"chat": map[string]any{
		"id":       out.ID,
		"title":    out.Title,
		"page_url": out.PageURL,
		"messages": msgs,
	}})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	rec, status := s.ownedChat(r)
	if rec == nil {
		writeJSON(w, status, map[string]string{"error": "Unauthorized access"})
		return
	}
	s.mu.Lock()
	msgs := append([]model.Message{}, rec.messages...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	rec, status := s.ownedChat(r)
	if rec == nil {
		writeJSON(w, status, map[string]string{"error": "Unauthorized access"})
		return
	}
	var in struct {
		ChatID  int    `json:"chat_id"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	s.mu.Lock()
	rec.messages = append(rec.messages, model.Message{Sender: model.SenderUser, Text: in.Message, Time: s.stamp()})
	delay := s.ReplyDelay
	s.mu.Unlock()

	if delay > 0 {
		time.AfterFunc(delay, func() { s.reply(rec) })
		writeJSON(w, http.StatusCreated, map[string]any{"status": "pending"})
		return
	}
	msg := s.reply(rec)
	writeJSON(w, http.StatusCreated, map[string]any{"message": msg})
}

func (s *Server) reply(rec *chatRecord) model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := model.Message{Sender: model.SenderBot, Text: s.Reply(rec.chat, rec.messages), Time: s.stamp()}
	rec.messages = append(rec.messages, msg)
	return msg
}

func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ChatID  int    `json:"chat_id"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.ChatID == 0 || in.Content == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Chat ID and content are required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.chats[in.ChatID]
	if !ok || rec.owner != emailFrom(r.Context()) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Chat not found"})
		return
	}
	acc := s.accounts[rec.owner]
	rec.chat.PageURL = fmt.Sprintf("%s/pages/%d/pages-%d/index.html", s.PageBase, acc.profile.ID, in.ChatID)
	writeJSON(w, http.StatusOK, map[string]string{"page_url": rec.chat.PageURL})
}

func (s *Server) ownedChat(r *http.Request) (*chatRecord, int) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		return nil, http.StatusNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.chats[id]
	if !ok {
		return nil, http.StatusNotFound
	}
	if rec.owner != emailFrom(r.Context()) {
		return nil, http.StatusForbidden
	}
	return rec, http.StatusOK
}

func (s *Server) addAccountLocked(name, email, password string) {
	if _, ok := s.accounts[email]; ok {
		return
	}
	s.nextUser++
	s.accounts[email] = &account{
		profile:  model.Profile{ID: s.nextUser, Name: name, Email: email},
		password: password,
	}
}

func (s *Server) issueLocked(email string) string {
	token := uuid.NewString()
	s.tokens[token] = email
	return token
}

// stamp formats the time the way the backend serializes timestamps.
func (s *Server) stamp() string {
	return s.Now().UTC().Format(http.TimeFormat)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L.Error("stub encode failed", "error", err)
	}
}
