package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// Message is an immutable entry of a session's chat log.
type Message struct {
	// ID is a UUIDv7, so ids sort in creation order.
	ID        string      `json:"id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
}

func newMessage(role MessageRole, content string) Message {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return Message{
		ID:        id.String(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

func UserMessage(content string) Message {
	return newMessage(MessageRoleUser, content)
}

func AssistantMessage(content string) Message {
	return newMessage(MessageRoleAssistant, content)
}

func SystemMessage(content string) Message {
	return newMessage(MessageRoleSystem, content)
}

// Log is an append-only, ordered message log. It is safe to read from any
// goroutine while its owner appends.
type Log struct {
	mu       sync.RWMutex
	messages []Message
}

func NewLog() *Log {
	return &Log{}
}

func (l *Log) Append(m Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = append(l.messages, m)
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.messages)
}

// All returns a copy of the log.
func (l *Log) All() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return append([]Message(nil), l.messages...)
}

// Last returns the most recent message, if any.
func (l *Log) Last() (Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.messages) == 0 {
		return Message{}, false
	}
	return l.messages[len(l.messages)-1], true
}
