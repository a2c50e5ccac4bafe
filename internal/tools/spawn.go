package tools

import (
	"context"
	"fmt"
	"strings"
)

const defaultSpawnMaxIterations = 10

// SubAgentRunner is the capability the spawn tool needs from the agent
// runtime: run a fresh session through the same turn loop, synchronously,
// capped at maxIterations, and return its final text.
type SubAgentRunner interface {
	RunSync(ctx context.Context, task string, maxIterations int) (string, error)
}

// SpawnTool creates a short-lived sub-agent task: a fresh session
// running the same AgentLoop with a capped iteration budget, blocking
// until it completes. There is no async/announce-queue machinery here —
// spawn always returns the sub-agent's final answer directly.
type SpawnTool struct {
	runner        SubAgentRunner
	maxIterations int
}

func NewSpawnTool(runner SubAgentRunner) *SpawnTool {
	return &SpawnTool{runner: runner, maxIterations: defaultSpawnMaxIterations}
}

func (t *SpawnTool) Name() string        { return "spawn" }
func (t *SpawnTool) Description() string {
	return "Spawn a short-lived sub-agent to work on a focused task and return its result."
}
func (t *SpawnTool) ParametersSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"task": map[string]interface{}{"type": "string", "description": "The task for the sub-agent to complete."},
		},
		"required": []string{"task"},
	}
}

func (t *SpawnTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	task, _ := args["task"].(string)
	if strings.TrimSpace(task) == "" {
		return "", fmt.Errorf("task is required")
	}
	result, err := t.runner.RunSync(ctx, task, t.maxIterations)
	if err != nil {
		return "", fmt.Errorf("sub-agent failed: %w", err)
	}
	return result, nil
}
