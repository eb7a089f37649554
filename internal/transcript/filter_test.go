// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// CODEX FILTER TESTS
// =============================================================================

const standardCodexOutput = `OpenAI Codex v0.77.0 (research preview)
--------
workdir: /Users/test
model: gpt-5.2-codex
--------
user
What is 2+2?
thinking
**Calculating the sum**
codex
Four
tokens used
1,288
`

const multilineCodexOutput = `OpenAI Codex v0.77.0
--------
user
Explain Python
thinking
**Preparing explanation**
codex
Python is a programming language.
It is widely used for:
- Web development
- Data science
- Automation
tokens used
500
`

func TestCodex_StandardOutput(t *testing.T) {
	assert.Equal(t, "Four", Codex(standardCodexOutput))
}

func TestCodex_MultilineResponse(t *testing.T) {
	got := Codex(multilineCodexOutput)

	want := "Python is a programming language.\nIt is widely used for:\n- Web development\n- Data science\n- Automation"
	assert.Equal(t, want, got)
	assert.NotContains(t, got, "tokens used")
}

func TestCodex_MissingSection(t *testing.T) {
	assert.Equal(t, "Just some plain text", Codex("Just some plain text"))
	assert.Equal(t, "keep\n\n  inner   spacing", Codex("\n\t keep\n\n  inner   spacing  \n"))
}

func TestCodex_Cases(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "marker with surrounding whitespace",
			raw:  "header\n  codex  \nanswer\n  tokens used: 12\n",
			want: "answer",
		},
		{
			name: "no usage footer captures to the end",
			raw:  "header\ncodex\nline one\nline two\n",
			want: "line one\nline two",
		},
		{
			name: "answer keeps internal indentation",
			raw:  "codex\n```go\n\tfmt.Println(1)\n```\ntokens used\n9",
			want: "```go\n\tfmt.Println(1)\n```",
		},
		{
			name: "repeated marker lines are not captured",
			raw:  "codex\nfirst\ncodex\nsecond\ntokens used\n1",
			want: "first\nsecond",
		},
		{
			name: "usage line before the answer section is ignored",
			raw:  "tokens used 0\ncodex\nanswer\ntokens used 5",
			want: "answer",
		},
		{
			name: "marker embedded in a sentence is not a section",
			raw:  "I used codex today.\nNothing else.",
			want: "I used codex today.\nNothing else.",
		},
		{
			name: "blank section yields an empty answer",
			raw:  "header\ncodex\n\n   \ntokens used\n5",
			want: "",
		},
		{
			name: "empty input",
			raw:  "   \n",
			want: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Codex(tc.raw))
		})
	}
}

func TestSections_CustomMarkers(t *testing.T) {
	f := Sections("[answer]", "[end]")
	assert.Equal(t, "42", f("noise\n[answer]\n42\n[end] stats\n"))
	assert.Equal(t, "untouched", f("  untouched "))
}

// =============================================================================
// REGISTRY TESTS
// =============================================================================

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	f, ok := r.Lookup("codex")
	require.True(t, ok)
	assert.Equal(t, "Four", f(standardCodexOutput))

	_, ok = r.Lookup("gemini")
	assert.False(t, ok)
	_, ok = r.Lookup("")
	assert.False(t, ok)
	assert.Equal(t, []string{"codex"}, r.Names())
}

func TestRegistry_RegisterAndRemove(t *testing.T) {
	r := NewRegistry()
	r.Register("upper", strings.ToUpper)
	r.Register("amp", Sections("answer", "done"))

	assert.Equal(t, []string{"amp", "upper"}, r.Names())

	f, ok := r.Lookup("upper")
	require.True(t, ok)
	assert.Equal(t, "ABC", f("abc"))

	r.Register("upper", nil)
	_, ok = r.Lookup("upper")
	assert.False(t, ok)
}

func TestRegistry_Nil(t *testing.T) {
	var r *Registry
	_, ok := r.Lookup("codex")
	assert.False(t, ok)
	assert.Nil(t, r.Names())
}

// =============================================================================
// PROPERTIES
// =============================================================================

func TestCodexProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	// Lines that can never be mistaken for a section label.
	bodyLine := gen.AlphaString().Map(func(s string) string { return "> " + s })

	properties.Property("answer body survives verbatim", prop.ForAll(
		func(lines []string) bool {
			body := strings.Join(lines, "\n")
			raw := "header\nthinking\ncodex\n" + body + "\ntokens used\n42\n"
			return Codex(raw) == strings.TrimSpace(body)
		},
		gen.SliceOfN(5, bodyLine),
	))

	properties.Property("usage footer never leaks", prop.ForAll(
		func(lines []string) bool {
			raw := "codex\n" + strings.Join(lines, "\n") + "\ntokens used\n1,024"
			return !strings.Contains(Codex(raw), "tokens used")
		},
		gen.SliceOf(bodyLine),
	))

	properties.Property("unmarked text is only trimmed", prop.ForAll(
		func(s string) bool {
			raw := "\n  x" + s + " \t\n"
			return Codex(raw) == strings.TrimSpace(raw)
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
