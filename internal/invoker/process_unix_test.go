// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !windows
// +build !windows

package invoker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestTimeout_LeavesNoProcessBehind(t *testing.T) {
	inv := New(StaticSource{"h": fakeCLI("h", "hang")})

	out := inv.InvokeDetailed(context.Background(), "h", userConv("x"), 150*time.Millisecond)

	require.Equal(t, KindTimeout, out.Kind())
	require.NotZero(t, out.PID)
	// The child was reaped, so the pid no longer names a process.
	err := unix.Kill(out.PID, 0)
	assert.ErrorIs(t, err, unix.ESRCH)
}

func TestRunProcess_ExitCodeAndStreams(t *testing.T) {
	spec := fakeCLI("f", "fail")

	res, err := runProcess(context.Background(), spec.Argv("x"), time.Minute, DefaultWaitDelay)

	require.Error(t, err)
	assert.Equal(t, 3, res.exitCode)
	assert.Equal(t, "partial", string(res.stdout))
	assert.Contains(t, string(res.stderr), "boom")
}
