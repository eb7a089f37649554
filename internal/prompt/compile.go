// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"strings"

	"github.com/jeranaias/llm-council/internal/model"
)

// Separator joins flattened messages.
const Separator = "\n\n"

// Compile converts a conversation into a single prompt string.
func Compile(conv model.Conversation) string {
	// Single-shot prompts pass through byte-for-byte.
	if len(conv) == 1 && conv[0].Role == model.RoleUser {
		return conv[0].Content
	}

	var b strings.Builder
	wrote := false
	for _, msg := range conv {
		if !msg.Role.IsKnown() {
			continue
		}
		if wrote {
			b.WriteString(Separator)
		}
		b.WriteString(msg.Role.DisplayName())
		b.WriteString(": ")
		b.WriteString(msg.Content)
		wrote = true
	}
	return b.String()
}
