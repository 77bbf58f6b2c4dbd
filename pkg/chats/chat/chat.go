// Package chat provides an ordered conversation container for LLM invocations.
package chat

import (
	"github.com/germanamz/invoker/pkg/chats/message"
	"github.com/germanamz/invoker/pkg/chats/role"
)

// Chat is an ordered sequence of messages. The zero value is ready to use.
// Chat is not safe for concurrent use; callers must synchronize externally.
type Chat struct {
	messages []message.Message
}

// New creates a Chat pre-populated with the given messages.
func New(msgs ...message.Message) *Chat {
	return &Chat{messages: msgs}
}

// System returns the system messages in their original order.
func (c *Chat) System() []message.Message {
	var out []message.Message
	for _, m := range c.messages {
		if m.Role == role.System {
			out = append(out, m)
		}
	}
	return out
}

// Turns returns the non-system messages in their original order.
func (c *Chat) Turns() []message.Message {
	var out []message.Message
	for _, m := range c.messages {
		if m.Role != role.System {
			out = append(out, m)
		}
	}
	return out
}
