package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/comigor/folio-go/internal/config"
	"github.com/comigor/folio-go/internal/errs"
	"github.com/comigor/folio-go/internal/logger"
	"github.com/comigor/folio-go/internal/model"
)

// TokenSource yields the stored credential, if any.
type TokenSource interface {
	Token() (string, bool)
}

// Client is a client for the portfolio backend API
type Client struct {
	cfg    config.APIConfig
	tokens TokenSource
	client *http.Client
}

// NewClient creates a new Client. tokens may be nil for unauthenticated use.
func NewClient(cfg config.APIConfig, tokens TokenSource) *Client {
	return &Client{
		cfg:    cfg,
		tokens: tokens,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// WithHTTPClient swaps the underlying http.Client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.client = hc
	return c
}

// op describes one backend operation and its generic failure message.
type op struct {
	name     string
	fallback string
}

var (
	opLogin        = op{"login", "Invalid email or password"}
	opSignup       = op{"signup", "Failed to create account"}
	opCurrentUser  = op{"fetch user", "Failed to fetch user."}
	opListChats    = op{"list chats", "Error fetching chats. Please try again later."}
	opCreateChat   = op{"create chat", "Error creating chat. Please try again later."}
	opListMessages = op{"list messages", "Error fetching messages. Please try again later."}
	opSendMessage  = op{"send message", "Error sending message. Please try again later."}
	opDeploy       = op{"deploy", "Error deploying page. Please try again later."}
)

// Login exchanges credentials for a token
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.doJSON(ctx, opLogin, http.MethodPost, "/api/auth/login", body, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

// Signup creates an account and returns its token
func (c *Client) Signup(ctx context.Context, name, email, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"name": name, "email": email, "password": password}
	if err := c.doJSON(ctx, opSignup, http.MethodPost, "/api/auth/signup", body, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

// CurrentUser retrieves the profile the stored token belongs to
func (c *Client) CurrentUser(ctx context.Context) (*model.Profile, error) {
	var p model.Profile
	if err := c.doJSON(ctx, opCurrentUser, http.MethodGet, "/api/auth/user", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListChats retrieves every chat of the current user
func (c *Client) ListChats(ctx context.Context) ([]model.Chat, error) {
	var out struct {
		Chats []model.Chat `json:"chats"`
	}
	if err := c.doJSON(ctx, opListChats, http.MethodGet, "/api/chats", nil, &out); err != nil {
		return nil, err
	}
	return out.Chats, nil
}

// CreateChat uploads a resume and opens a new chat for it
func (c *Client) CreateChat(ctx context.Context, in model.NewChat) (*model.Chat, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("title", in.Title); err != nil {
		return nil, c.transportErr(opCreateChat, err)
	}
	name := in.ResumeName
	if name == "" {
		name = "resume.pdf"
	}
	fw, err := mw.CreateFormFile("resume", name)
	if err != nil {
		return nil, c.transportErr(opCreateChat, err)
	}
	if _, err := fw.Write(in.Resume); err != nil {
		return nil, c.transportErr(opCreateChat, err)
	}
	if err := mw.WriteField("additionalDescription", in.Description); err != nil {
		return nil, c.transportErr(opCreateChat, err)
	}
	if err := mw.Close(); err != nil {
		return nil, c.transportErr(opCreateChat, err)
	}

	var out struct {
		Chat *model.Chat `json:"chat"`
	}
	if err := c.do(ctx, opCreateChat, http.MethodPost, "/api/chats", &buf, mw.FormDataContentType(), &out); err != nil {
		return nil, err
	}
	if out.Chat == nil {
		return nil, &errs.RequestError{Op: opCreateChat.name, Message: opCreateChat.fallback, Err: errors.New("response has no chat")}
	}
	return out.Chat, nil
}

// ListMessages retrieves the full message sequence of a chat
func (c *Client) ListMessages(ctx context.Context, chatID int) ([]model.Message, error) {
	var out struct {
		Messages []model.Message `json:"messages"`
	}
	path := fmt.Sprintf("/api/chats/%d/messages", chatID)
	if err := c.doJSON(ctx, opListMessages, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if out.Messages == nil {
		out.Messages = []model.Message{}
	}
	return out.Messages, nil
}

// SendMessage posts a user message to a chat
func (c *Client) SendMessage(ctx context.Context, chatID int, text string) error {
	body := struct {
		ChatID  int    `json:"chat_id"`
		Message string `json:"message"`
	}{chatID, text}
	path := fmt.Sprintf("/api/chats/%d/messages", chatID)
	return c.doJSON(ctx, opSendMessage, http.MethodPost, path, body, nil)
}

// Deploy publishes html as the chat's page and returns its URL
func (c *Client) Deploy(ctx context.Context, chatID int, html string) (string, error) {
	body := struct {
		ChatID  int    `json:"chat_id"`
		Content string `json:"content"`
	}{chatID, html}
	var out struct {
		PageURL string `json:"page_url"`
	}
	if err := c.doJSON(ctx, opDeploy, http.MethodPost, "/api/deploy", body, &out); err != nil {
		return "", err
	}
	return out.PageURL, nil
}

func (c *Client) doJSON(ctx context.Context, o op, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return c.transportErr(o, err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, o, method, path, body, contentType, out)
}

func (c *Client) do(ctx context.Context, o op, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return c.transportErr(o, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	c.decorate(req)

	logger.L.Debug("api request", "op", o.name, "method", method, "path", path)
	resp, err := c.client.Do(req)
	if err != nil {
		return c.transportErr(o, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.transportErr(o, err)
	}
	logger.L.Debug("api response", "op", o.name, "status", resp.StatusCode, "bytes", len(data))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &errs.RequestError{
			Op:      o.name,
			Status:  resp.StatusCode,
			Message: serverMessage(data, o.fallback),
		}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &errs.RequestError{Op: o.name, Status: resp.StatusCode, Message: o.fallback, Err: err}
	}
	return nil
}

// decorate attaches the bearer credential to every outbound request.
func (c *Client) decorate(req *http.Request) {
	if c.tokens == nil {
		return
	}
	if token, ok := c.tokens.Token(); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func (c *Client) transportErr(o op, err error) error {
	return &errs.RequestError{Op: o.name, Message: o.fallback, Err: err}
}

// serverMessage extracts the message from an error payload, preferring
// "message" over "error".
func serverMessage(data []byte, fallback string) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Msg     string `json:"msg"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return fallback
	}
	for _, m := range []string{payload.Message, payload.Error, payload.Msg} {
		if m = strings.TrimSpace(m); m != "" {
			return m
		}
	}
	return fallback
}
