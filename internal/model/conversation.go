// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// Conversation is an ordered sequence of messages. It is a value type: the
// helpers below never mutate the receiver's backing array.
type Conversation []Message

// FromPrompt builds a single-turn conversation, optionally preceded by a
// system message when system is non-empty.
func FromPrompt(system, prompt string) Conversation {
	if system == "" {
		return Conversation{NewUserMessage(prompt)}
	}
	return Conversation{NewSystemMessage(system), NewUserMessage(prompt)}
}

// With returns a copy of the conversation with msgs appended.
func (c Conversation) With(msgs ...Message) Conversation {
	out := make(Conversation, 0, len(c)+len(msgs))
	out = append(out, c...)
	return append(out, msgs...)
}

// Last returns the final message and true, or a zero Message and false when
// the conversation is empty.
func (c Conversation) Last() (Message, bool) {
	if len(c) == 0 {
		return Message{}, false
	}
	return c[len(c)-1], true
}

// LastUser returns the most recent user message.
func (c Conversation) LastUser() (Message, bool) {
	for i := len(c) - 1; i >= 0; i-- {
		if c[i].Role == RoleUser {
			return c[i], true
		}
	}
	return Message{}, false
}

// IsEmpty reports whether the conversation has no messages.
func (c Conversation) IsEmpty() bool {
	return len(c) == 0
}
