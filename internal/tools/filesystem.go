package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tinyclaw-run/tinyclaw/internal/security"
)

func workspaceOf(ctx context.Context, fallback string) string {
	if ws := WorkspaceFromCtx(ctx); ws != "" {
		return ws
	}
	return fallback
}

// ReadFileTool reads a file's contents.
type ReadFileTool struct {
	workspace string
	guard     *security.Guard
}

func NewReadFileTool(workspace string, guard *security.Guard) *ReadFileTool {
	return &ReadFileTool{workspace: workspace, guard: guard}
}

func (t *ReadFileTool) Name() string        { return "read_file" }
func (t *ReadFileTool) Description() string { return "Read the contents of a file within the workspace." }
func (t *ReadFileTool) ParametersSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{"type": "string", "description": "Path to the file, relative to the workspace root."},
		},
		"required": []string{"path"},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	d := t.guard.CheckFilePath(path)
	if !d.Allowed {
		return "Access denied: " + d.Reason, nil
	}
	resolved, err := t.guard.ResolvePath(path)
	if err != nil {
		return "Access denied: " + err.Error(), nil
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// WriteFileTool overwrites (or creates) a file.
type WriteFileTool struct {
	workspace string
	guard     *security.Guard
}

func NewWriteFileTool(workspace string, guard *security.Guard) *WriteFileTool {
	return &WriteFileTool{workspace: workspace, guard: guard}
}

func (t *WriteFileTool) Name() string        { return "write_file" }
func (t *WriteFileTool) Description() string { return "Write content to a file, creating or overwriting it." }
func (t *WriteFileTool) ParametersSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path":    map[string]interface{}{"type": "string", "description": "Path to the file, relative to the workspace root."},
			"content": map[string]interface{}{"type": "string", "description": "The content to write."},
		},
		"required": []string{"path", "content"},
	}
}

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	d := t.guard.CheckFilePath(path)
	if !d.Allowed {
		return "Access denied: " + d.Reason, nil
	}
	resolved, err := t.guard.ResolvePath(path)
	if err != nil {
		return "Access denied: " + err.Error(), nil
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return "", fmt.Errorf("create parent dirs: %w", err)
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return fmt.Sprintf("Wrote %d bytes to %s", len(content), path), nil
}

// AppendFileTool appends content to a file, creating it if missing.
type AppendFileTool struct {
	workspace string
	guard     *security.Guard
}

func NewAppendFileTool(workspace string, guard *security.Guard) *AppendFileTool {
	return &AppendFileTool{workspace: workspace, guard: guard}
}

func (t *AppendFileTool) Name() string        { return "append_file" }
func (t *AppendFileTool) Description() string { return "Append content to the end of a file, creating it if needed." }
func (t *AppendFileTool) ParametersSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path":    map[string]interface{}{"type": "string", "description": "Path to the file, relative to the workspace root."},
			"content": map[string]interface{}{"type": "string", "description": "The content to append."},
		},
		"required": []string{"path", "content"},
	}
}

func (t *AppendFileTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	d := t.guard.CheckFilePath(path)
	if !d.Allowed {
		return "Access denied: " + d.Reason, nil
	}
	resolved, err := t.guard.ResolvePath(path)
	if err != nil {
		return "Access denied: " + err.Error(), nil
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return "", fmt.Errorf("create parent dirs: %w", err)
	}
	f, err := os.OpenFile(resolved, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		return "", fmt.Errorf("append %s: %w", path, err)
	}
	return fmt.Sprintf("Appended %d bytes to %s", len(content), path), nil
}

// EditFileTool performs a literal find/replace in a file: {path, find,
// replace, all?} — deterministic, explicit-argument, no diff/patch DSL.
type EditFileTool struct {
	workspace string
	guard     *security.Guard
}

func NewEditFileTool(workspace string, guard *security.Guard) *EditFileTool {
	return &EditFileTool{workspace: workspace, guard: guard}
}

func (t *EditFileTool) Name() string        { return "edit_file" }
func (t *EditFileTool) Description() string {
	return "Replace an exact substring in a file with another string (literal find/replace, not regex)."
}
func (t *EditFileTool) ParametersSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path":    map[string]interface{}{"type": "string", "description": "Path to the file, relative to the workspace root."},
			"find":    map[string]interface{}{"type": "string", "description": "Exact substring to find."},
			"replace": map[string]interface{}{"type": "string", "description": "Replacement text."},
			"all":     map[string]interface{}{"type": "boolean", "description": "Replace every occurrence instead of just the first (default false)."},
		},
		"required": []string{"path", "find", "replace"},
	}
}

func (t *EditFileTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	path, _ := args["path"].(string)
	find, _ := args["find"].(string)
	replace, _ := args["replace"].(string)
	all, _ := args["all"].(bool)
	if path == "" || find == "" {
		return "", fmt.Errorf("path and find are required")
	}
	d := t.guard.CheckFilePath(path)
	if !d.Allowed {
		return "Access denied: " + d.Reason, nil
	}
	resolved, err := t.guard.ResolvePath(path)
	if err != nil {
		return "Access denied: " + err.Error(), nil
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	original := string(data)
	if !strings.Contains(original, find) {
		return "", fmt.Errorf("find string not present in %s", path)
	}

	var updated string
	var count int
	if all {
		count = strings.Count(original, find)
		updated = strings.ReplaceAll(original, find, replace)
	} else {
		count = 1
		updated = strings.Replace(original, find, replace, 1)
	}

	if err := os.WriteFile(resolved, []byte(updated), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return fmt.Sprintf("Replaced %d occurrence(s) in %s", count, path), nil
}

// ListDirTool lists the entries of a directory.
type ListDirTool struct {
	workspace string
	guard     *security.Guard
}

func NewListDirTool(workspace string, guard *security.Guard) *ListDirTool {
	return &ListDirTool{workspace: workspace, guard: guard}
}

func (t *ListDirTool) Name() string        { return "list_dir" }
func (t *ListDirTool) Description() string { return "List the entries of a directory within the workspace." }
func (t *ListDirTool) ParametersSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{"type": "string", "description": "Directory path, relative to the workspace root (default \".\")."},
		},
	}
}

func (t *ListDirTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	path, _ := args["path"].(string)
	if path == "" {
		path = "."
	}
	d := t.guard.CheckFilePath(path)
	if !d.Allowed {
		return "Access denied: " + d.Reason, nil
	}
	resolved, err := t.guard.ResolvePath(path)
	if err != nil {
		return "Access denied: " + err.Error(), nil
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return "", fmt.Errorf("list %s: %w", path, err)
	}
	var b strings.Builder
	for _, e := range entries {
		if e.IsDir() {
			fmt.Fprintf(&b, "%s/\n", e.Name())
		} else {
			fmt.Fprintf(&b, "%s\n", e.Name())
		}
	}
	return b.String(), nil
}
