package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/tinyclaw-run/tinyclaw/internal/security"
)

const (
	defaultExecTimeout = 30 * time.Second
	maxExecTimeout     = 10 * time.Minute
)

// ExecTool runs a shell command on the host, subject to SecurityGuard's
// command blacklist and optional working-directory restriction.
type ExecTool struct {
	guard          *security.Guard
	defaultTimeout time.Duration
}

func NewExecTool(guard *security.Guard) *ExecTool {
	return &ExecTool{guard: guard, defaultTimeout: defaultExecTimeout}
}

// NewExecToolWithTimeout builds an ExecTool whose default per-call
// timeout comes from config (ExecApprovalCfg.TimeoutMs) instead of
// defaultExecTimeout; a caller-supplied timeout_ms still overrides it.
func NewExecToolWithTimeout(guard *security.Guard, defaultTimeout time.Duration) *ExecTool {
	if defaultTimeout <= 0 {
		defaultTimeout = defaultExecTimeout
	}
	return &ExecTool{guard: guard, defaultTimeout: defaultTimeout}
}

func (t *ExecTool) Name() string        { return "exec" }
func (t *ExecTool) Description() string { return "Execute a shell command and return its combined output." }
func (t *ExecTool) ParametersSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command":     map[string]interface{}{"type": "string", "description": "The shell command line to run."},
			"working_dir": map[string]interface{}{"type": "string", "description": "Optional working directory, relative to the workspace root."},
			"timeout_ms":  map[string]interface{}{"type": "integer", "description": "Optional per-call timeout in milliseconds, capped at 10 minutes."},
		},
		"required": []string{"command"},
	}
}

func (t *ExecTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	command, _ := args["command"].(string)
	if strings.TrimSpace(command) == "" {
		return "", fmt.Errorf("command is required")
	}

	if d := t.guard.CheckCommand(command); !d.Allowed {
		return "Command denied: " + d.Reason, nil
	}

	var workDir string
	if wd, _ := args["working_dir"].(string); wd != "" {
		d := t.guard.CheckWorkingDir(wd)
		if !d.Allowed {
			return "Working directory denied: " + d.Reason, nil
		}
		resolved, err := t.guard.ResolvePath(wd)
		if err != nil {
			return "Working directory denied: " + err.Error(), nil
		}
		workDir = resolved
	}

	timeout := t.defaultTimeout
	if raw, ok := args["timeout_ms"]; ok {
		ms, ok := raw.(float64)
		if !ok || ms <= 0 {
			return "", fmt.Errorf("timeout_ms must be a positive integer")
		}
		timeout = time.Duration(ms) * time.Millisecond
		if timeout > maxExecTimeout {
			timeout = maxExecTimeout
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	if workDir != "" {
		cmd.Dir = workDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	var out strings.Builder
	out.WriteString(strings.TrimSpace(stdout.String()))
	if stderr.Len() > 0 {
		if out.Len() > 0 {
			out.WriteString("\n")
		}
		out.WriteString("STDERR:\n")
		out.WriteString(strings.TrimSpace(stderr.String()))
	}

	exitCode := 0
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			out.WriteString("\n[timed out]")
			exitCode = -1
		} else if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return "", fmt.Errorf("exec: %w", err)
		}
	}
	fmt.Fprintf(&out, "\n[exit_code: %d]", exitCode)

	return out.String(), nil
}
