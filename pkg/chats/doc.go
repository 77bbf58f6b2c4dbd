// Package chats provides a provider-agnostic data model for chat-completion
// invocations.
//
// It is organized into sub-packages:
//   - [github.com/germanamz/invoker/pkg/chats/role] — conversation roles (system, human, assistant)
//   - [github.com/germanamz/invoker/pkg/chats/message] — role/content pairs
//   - [github.com/germanamz/invoker/pkg/chats/chat] — ordered conversation container
//
// No provider or API code is included — chats is a foundation layer
// that adapters can build on.
package chats
