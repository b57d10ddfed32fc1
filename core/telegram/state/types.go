package state

import "time"

// Flow names a conversation scenario such as registration or login.
type Flow string

// Step names a position inside a flow.
type Step string

// Key identifies a single dialog. The same user talking to the bot in two
// different chats gets two independent conversations.
type Key struct {
	UserID int64
	ChatID int64
}

// Conversation holds the progress of one active dialog.
type Conversation struct {
	Flow      Flow
	Step      Step
	Scratch   map[string]string
	StartedAt time.Time
}

// NewConversation starts a conversation positioned at the given step.
func NewConversation(flow Flow, step Step) *Conversation {
	return &Conversation{
		Flow:      flow,
		Step:      step,
		Scratch:   make(map[string]string),
		StartedAt: time.Now(),
	}
}

// Put stores a scratch value collected during the dialog.
func (c *Conversation) Put(key, value string) {
	if c.Scratch == nil {
		c.Scratch = make(map[string]string)
	}
	c.Scratch[key] = value
}

// Get returns a scratch value and whether it was present.
func (c *Conversation) Get(key string) (string, bool) {
	if c == nil || c.Scratch == nil {
		return "", false
	}
	v, ok := c.Scratch[key]
	return v, ok
}

// Value returns a scratch value or empty string when absent.
func (c *Conversation) Value(key string) string {
	v, _ := c.Get(key)
	return v
}

// Delete removes a scratch value.
func (c *Conversation) Delete(key string) {
	if c != nil && c.Scratch != nil {
		delete(c.Scratch, key)
	}
}
