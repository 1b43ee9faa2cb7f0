package tools

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/avramovic/golabot/internal/telemetry"
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

const (
	defaultShellTimeout = 30 * time.Second
	maxShellTimeout     = 120 * time.Second
	maxShellOutput      = 8 * 1024
)

// ShellInput is the input for the exec tool.
type ShellInput struct {
	Command    string `json:"command"`
	WorkingDir string `json:"working_dir,omitempty"`
	TimeoutSec int    `json:"timeout_sec,omitempty"`
}

// ShellOutput is the output for the exec tool.
type ShellOutput struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
	Error    string `json:"error,omitempty"`
}

func registerShell(g *genkit.Genkit, reg *Registry) ai.ToolRef {
	return genkit.DefineTool(g, "exec",
		"Execute a shell command on the host and return stdout, stderr and the exit code. Output is truncated to 8KB and secrets are redacted.",
		func(ctx *ai.ToolContext, input ShellInput) (ShellOutput, error) {
			if input.Command == "" {
				return ShellOutput{Error: reg.fail(ctx, "exec", "empty command")}, nil
			}

			timeout := defaultShellTimeout
			if input.TimeoutSec > 0 {
				timeout = time.Duration(input.TimeoutSec) * time.Second
				if timeout > maxShellTimeout {
					timeout = maxShellTimeout
				}
			}
			execCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			cmd := exec.CommandContext(execCtx, "sh", "-c", input.Command)
			if input.WorkingDir != "" {
				cmd.Dir = input.WorkingDir
			}
			var outBuf, errBuf bytes.Buffer
			cmd.Stdout = &outBuf
			cmd.Stderr = &errBuf

			runErr := cmd.Run()
			exitCode := 0
			if runErr != nil {
				if exitErr, ok := runErr.(*exec.ExitError); ok {
					exitCode = exitErr.ExitCode()
				} else if execCtx.Err() == context.DeadlineExceeded {
					return ShellOutput{
						Stdout:   truncateOutput(telemetry.Redact(outBuf.String()), maxShellOutput),
						ExitCode: -1,
						Error:    reg.fail(ctx, "exec", "command timed out"),
					}, nil
				} else {
					return ShellOutput{Error: reg.fail(ctx, "exec", runErr.Error())}, nil
				}
			}

			return ShellOutput{
				Stdout:   truncateOutput(telemetry.Redact(outBuf.String()), maxShellOutput),
				Stderr:   truncateOutput(telemetry.Redact(errBuf.String()), maxShellOutput),
				ExitCode: exitCode,
			}, nil
		},
	)
}

func truncateOutput(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "\n... (truncated)"
}
