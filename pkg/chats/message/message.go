// Package message defines the Message type used in LLM conversations.
package message

import "github.com/germanamz/invoker/pkg/chats/role"

// Message is a single role/content pair in a conversation.
// It is a value type that copies cheaply.
type Message struct {
	Role    role.Role
	Content string
}

// New creates a message with the given role and content.
func New(r role.Role, content string) Message {
	return Message{Role: r, Content: content}
}

// System creates a system instruction message.
func System(content string) Message { return New(role.System, content) }

// Human creates a human utterance message.
func Human(content string) Message { return New(role.Human, content) }

// String renders the message as "role: content".
func (m Message) String() string {
	return m.Role.String() + ": " + m.Content
}
