// Package security implements SecurityGuard: path and command policy
// checks shared by every filesystem- and shell-touching tool.
package security

import (
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
)

// Policy is the immutable configuration SecurityGuard enforces for the
// lifetime of a run. It is safe to share by value across goroutines —
// nothing in Guard mutates it after construction.
type Policy struct {
	WorkspaceRoot      string   // absolute, normalised
	RestrictToWorkspace bool
	CommandBlacklist   []string // regex source strings; empty means "use defaults"
}

// Guard is SecurityGuard: read-only after construction, no lock needed.
type Guard struct {
	workspace string // canonicalised workspace root, resolved once at construction
	restrict  bool
	deny      []*regexp.Regexp
}

// New builds a Guard from a Policy, expanding "~" and canonicalising the
// workspace root up front. If the configured blacklist is non-empty it
// replaces the defaults entirely; an empty blacklist means "apply
// defaults" (see spec Open Question — non-empty replaces, never merges).
func New(policy Policy) (*Guard, error) {
	ws, err := expandHome(policy.WorkspaceRoot)
	if err != nil {
		return nil, fmt.Errorf("security: expand workspace root: %w", err)
	}
	absWS, err := filepath.Abs(ws)
	if err != nil {
		return nil, fmt.Errorf("security: absolute workspace root: %w", err)
	}
	wsReal, err := filepath.EvalSymlinks(absWS)
	if err != nil {
		// Workspace may not exist yet at construction time — use the
		// non-canonical absolute form; checkFilePath re-resolves per call.
		wsReal = absWS
	}

	patterns := policy.CommandBlacklist
	if len(patterns) == 0 {
		patterns = DefaultCommandBlacklist
	}
	deny := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("security: invalid blacklist pattern %q: %w", p, err)
		}
		deny = append(deny, re)
	}

	return &Guard{workspace: wsReal, restrict: policy.RestrictToWorkspace, deny: deny}, nil
}

// Decision is the data result of a policy check — never an exception.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision { return Decision{Allowed: false, Reason: reason} }

// CheckFilePath resolves path to its canonical form and validates it is
// inside the canonical workspace root. Symlinks (including broken ones
// and chained/mutable symlink parents) and hardlinks are resolved and
// rejected before the comparison, so a link cannot be used to escape the
// workspace boundary. When RestrictToWorkspace is false every path is
// allowed.
func (g *Guard) CheckFilePath(path string) Decision {
	real, err := g.resolvePath(path)
	if err != nil {
		return deny(err.Error())
	}
	_ = real
	return allow()
}

// ResolvePath is CheckFilePath's allowed form: it returns the canonical,
// validated path for tools to actually perform I/O against, or an error
// matching the Decision that CheckFilePath would have produced.
func (g *Guard) ResolvePath(path string) (string, error) {
	return g.resolvePath(path)
}

// CheckWorkingDir applies the same rule as CheckFilePath to a directory
// that exec intends to chdir into.
func (g *Guard) CheckWorkingDir(dir string) Decision {
	return g.CheckFilePath(dir)
}

// CheckCommand matches cmdline against every blacklist pattern,
// case-insensitively. Any match denies.
func (g *Guard) CheckCommand(cmdline string) Decision {
	for _, re := range g.deny {
		if re.MatchString(cmdline) {
			return deny(fmt.Sprintf("command denied by safety policy: matches pattern %s", re.String()))
		}
	}
	return allow()
}

func (g *Guard) resolvePath(path string) (string, error) {
	expanded, err := expandHome(path)
	if err != nil {
		return "", fmt.Errorf("access denied: %w", err)
	}

	var resolved string
	if filepath.IsAbs(expanded) {
		resolved = filepath.Clean(expanded)
	} else {
		resolved = filepath.Clean(filepath.Join(g.workspace, expanded))
	}

	if !g.restrict {
		return resolved, nil
	}

	absResolved, _ := filepath.Abs(resolved)
	real, err := filepath.EvalSymlinks(absResolved)
	if err != nil {
		if os.IsNotExist(err) {
			if linfo, lerr := os.Lstat(absResolved); lerr == nil && linfo.Mode()&os.ModeSymlink != 0 {
				target, readErr := os.Readlink(absResolved)
				if readErr != nil {
					return "", fmt.Errorf("access denied: cannot resolve symlink")
				}
				if !filepath.IsAbs(target) {
					target = filepath.Join(filepath.Dir(absResolved), target)
				}
				target = filepath.Clean(target)

				resolvedTarget, resolveErr := resolveThroughExistingAncestors(target)
				if resolveErr != nil {
					slog.Warn("security.broken_symlink_resolve_failed", "path", path, "target", target)
					return "", fmt.Errorf("access denied: cannot resolve broken symlink target")
				}
				if !isPathInside(resolvedTarget, g.workspace) {
					slog.Warn("security.broken_symlink_escape", "path", path, "target", resolvedTarget, "workspace", g.workspace)
					return "", fmt.Errorf("access denied: broken symlink target outside workspace")
				}
				real = resolvedTarget
			} else {
				parentReal, parentErr := filepath.EvalSymlinks(filepath.Dir(absResolved))
				if parentErr != nil {
					return "", fmt.Errorf("access denied: cannot resolve path")
				}
				real = filepath.Join(parentReal, filepath.Base(absResolved))
			}
		} else {
			slog.Warn("security.path_resolve_failed", "path", path, "error", err)
			return "", fmt.Errorf("access denied: cannot resolve path")
		}
	}

	if !isPathInside(real, g.workspace) {
		slog.Warn("security.path_escape", "path", path, "resolved", real, "workspace", g.workspace)
		return "", fmt.Errorf("access denied: path outside workspace")
	}

	if hasMutableSymlinkParent(real) {
		slog.Warn("security.mutable_symlink_parent", "path", path, "resolved", real)
		return "", fmt.Errorf("access denied: path contains mutable symlink component")
	}

	if err := checkHardlink(real); err != nil {
		return "", err
	}

	return real, nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("expand ~: %w", err)
	}
	if path == "~" {
		return u.HomeDir, nil
	}
	return filepath.Join(u.HomeDir, path[2:]), nil
}

func isPathInside(child, parent string) bool {
	if child == parent {
		return true
	}
	return strings.HasPrefix(child, parent+string(filepath.Separator))
}

func resolveThroughExistingAncestors(target string) (string, error) {
	if real, err := filepath.EvalSymlinks(target); err == nil {
		return real, nil
	}

	current := target
	var tail []string
	for {
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		tail = append([]string{filepath.Base(current)}, tail...)
		current = parent

		if realParent, err := filepath.EvalSymlinks(current); err == nil {
			result := realParent
			for _, component := range tail {
				result = filepath.Join(result, component)
			}
			return result, nil
		}
	}
	return filepath.Clean(target), nil
}

func hasMutableSymlinkParent(path string) bool {
	clean := filepath.Clean(path)
	components := strings.Split(clean, string(filepath.Separator))
	current := string(filepath.Separator)
	for _, comp := range components {
		if comp == "" {
			continue
		}
		current = filepath.Join(current, comp)
		info, err := os.Lstat(current)
		if err != nil {
			break
		}
		if info.Mode()&os.ModeSymlink != 0 {
			parentDir := filepath.Dir(current)
			if syscall.Access(parentDir, 0x2 /* W_OK */) == nil {
				return true
			}
		}
	}
	return false
}

func checkHardlink(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return nil
	}
	if info.IsDir() {
		return nil
	}
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		if stat.Nlink > 1 {
			slog.Warn("security.hardlink_rejected", "path", path, "nlink", stat.Nlink)
			return fmt.Errorf("access denied: hardlinked file not allowed")
		}
	}
	return nil
}
