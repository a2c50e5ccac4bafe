package tools

import (
	"context"
	"errors"
	"testing"
)

type fakeSubAgentRunner struct {
	gotTask          string
	gotMaxIterations int
	err              error
}

func (f *fakeSubAgentRunner) RunSync(ctx context.Context, task string, maxIterations int) (string, error) {
	f.gotTask = task
	f.gotMaxIterations = maxIterations
	if f.err != nil {
		return "", f.err
	}
	return "done: " + task, nil
}

func TestSpawnToolRunsSubAgentSynchronously(t *testing.T) {
	runner := &fakeSubAgentRunner{}
	tool := NewSpawnTool(runner)

	out, err := tool.Execute(context.Background(), map[string]interface{}{"task": "research X"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out != "done: research X" {
		t.Fatalf("got %q", out)
	}
	if runner.gotMaxIterations != defaultSpawnMaxIterations {
		t.Fatalf("expected capped iteration budget of %d, got %d", defaultSpawnMaxIterations, runner.gotMaxIterations)
	}
}

func TestSpawnToolPropagatesSubAgentError(t *testing.T) {
	runner := &fakeSubAgentRunner{err: errors.New("boom")}
	tool := NewSpawnTool(runner)

	if _, err := tool.Execute(context.Background(), map[string]interface{}{"task": "x"}); err == nil {
		t.Fatal("expected an error")
	}
}
