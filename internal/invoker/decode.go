// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package invoker

import (
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// decodeText converts captured bytes into text. Invalid UTF-8 sequences are
// replaced with U+FFFD; a UTF-16 or UTF-8 byte order mark selects the
// matching decoder and is dropped.
func decodeText(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(decoder, b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "�")
	}
	return string(out)
}
