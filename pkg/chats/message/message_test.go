package message

import (
	"testing"

	"github.com/germanamz/invoker/pkg/chats/role"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	msg := New(role.Human, "hello")

	assert.Equal(t, role.Human, msg.Role)
	assert.Equal(t, "hello", msg.Content)
}

func TestSystemAndHuman(t *testing.T) {
	assert.Equal(t, Message{Role: role.System, Content: "be brief"}, System("be brief"))
	assert.Equal(t, Message{Role: role.Human, Content: "hi"}, Human("hi"))
}

func TestMessage_ZeroValue(t *testing.T) {
	var msg Message

	assert.Empty(t, msg.Role)
	assert.Empty(t, msg.Content)
}

func TestMessage_String(t *testing.T) {
	assert.Equal(t, "system: Translate.", System("Translate.").String())
}
