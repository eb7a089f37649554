// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the domain types shared by the prompt compiler, the
// CLI invoker and the HTTP/CLI surfaces.
//
// # Key Types
//
//   - Role: Message role enumeration (system, user, assistant)
//   - Message: Single role-tagged message
//   - Conversation: Ordered sequence of messages
//
// # Usage
//
//	conv := model.Conversation{
//	    model.NewSystemMessage("You are helpful."),
//	    model.NewUserMessage("What is 2+2?"),
//	}
//	prompt := prompt.Compile(conv)
package model
