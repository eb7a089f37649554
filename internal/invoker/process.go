// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package invoker

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os/exec"
	"time"
)

// =============================================================================
// PROCESS EXECUTION
// =============================================================================

// processResult captures one finished (or killed) subprocess.
type processResult struct {
	stdout   []byte
	stderr   []byte
	exitCode int
	pid      int
}

// runProcess executes argv directly (no shell) with stdout and stderr captured
// separately. On timeout or cancellation the process group is killed and
// reaped before runProcess returns; the returned error is then ctx-derived.
func runProcess(ctx context.Context, argv []string, timeout, waitDelay time.Duration) (processResult, error) {
	res := processResult{exitCode: -1}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	configureProcess(cmd)

	if err := cmd.Start(); err != nil {
		if ctxErr := runCtx.Err(); ctxErr != nil && !isNotFound(err) {
			return res, ctxErr
		}
		return res, err
	}
	res.pid = cmd.Process.Pid

	// Wait returns only after the process has been reaped, including when
	// the context fired and configureProcess' Cancel killed it.
	err := cmd.Wait()
	if err == nil {
		res.exitCode = 0
		res.stdout = stdout.Bytes()
		res.stderr = stderr.Bytes()
		return res, nil
	}

	if ctxErr := runCtx.Err(); ctxErr != nil {
		// Output produced before the deadline is discarded.
		return res, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.exitCode = exitErr.ExitCode()
		res.stdout = stdout.Bytes()
		res.stderr = stderr.Bytes()
	}
	return res, err
}

// isNotFound reports whether a Start error means the executable could not be
// located or executed.
func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) ||
		errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission)
}
