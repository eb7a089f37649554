// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - COUNCIL_CHAIRMAN: overrides chairman_id
//   - COUNCIL_MEMBERS: comma-separated list, overrides council_ids
//   - COUNCIL_TIMEOUT: seconds ("90") or a duration ("90s", "2m"), overrides timeout_secs
//
// COUNCIL_CONFIG selects the file itself; see ResolvePath.
func (c *Config) ApplyEnvOverrides() {
	if chairman := strings.TrimSpace(os.Getenv("COUNCIL_CHAIRMAN")); chairman != "" {
		c.ChairmanID = chairman
	}

	if members := os.Getenv("COUNCIL_MEMBERS"); strings.TrimSpace(members) != "" {
		c.CouncilIDs = SplitList(members)
	}

	if timeout := strings.TrimSpace(os.Getenv("COUNCIL_TIMEOUT")); timeout != "" {
		if secs, ok := parseSeconds(timeout); ok {
			c.TimeoutSecs = secs
		}
	}
}

// SplitList splits a comma-separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseSeconds(s string) (int, bool) {
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n, true
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return int(d.Round(time.Second) / time.Second), true
	}
	return 0, false
}
