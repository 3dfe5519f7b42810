// Package model holds the records exchanged with the portfolio backend.
package model

import "encoding/json"

// Sender identifies who wrote a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Profile is the authenticated user's account record.
type Profile struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Session is the credential plus the profile it resolves to, when known.
type Session struct {
	Token string
	User  *Profile
}

// Chat is a conversation tied to one uploaded resume.
type Chat struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	LastMessage string `json:"lastMessage,omitempty"`
	LastUpdated string `json:"lastUpdated,omitempty"`
	PageURL     string `json:"page_url"`
}

// Deployed reports whether the chat's page has been published.
func (c Chat) Deployed() bool {
	return c.PageURL != ""
}

// Message is a single entry of a chat. Messages are append-only; LocalID is
// set only on optimistic messages that have not been confirmed by the backend.
type Message struct {
	Sender  Sender `json:"sender"`
	Text    string `json:"text"`
	Time    string `json:"time"`
	LocalID string `json:"-"`
}

// Pending reports whether the message exists only on this client.
func (m Message) Pending() bool {
	return m.LocalID != ""
}

// NewChat is the input for creating a chat. Resume is the raw file content.
type NewChat struct {
	Title       string
	ResumeName  string
	Resume      []byte
	Description string
}

// UnmarshalJSON accepts both the wrapped {"user": {...}} form the backend
// returns and a bare profile object.
func (p *Profile) UnmarshalJSON(data []byte) error {
	type plain Profile
	var wrapped struct {
		User *plain `json:"user"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.User != nil {
		*p = Profile(*wrapped.User)
		return nil
	}
	var bare plain
	if err := json.Unmarshal(data, &bare); err != nil {
		return err
	}
	*p = Profile(bare)
	return nil
}
