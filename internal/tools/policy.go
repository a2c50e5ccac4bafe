package tools

import "strings"

// Policy gates which tool names are usable in a given turn. TinyClaw
// runs a single agent against a single tool registry, so one flat
// allow/deny profile is enough — no per-provider/per-agent layering.
type Policy struct {
	allow map[string]bool // nil means "allow everything not denied"
	deny  map[string]bool
}

// NewPolicy builds a Policy from an explicit allow list (empty means
// unrestricted) and a deny list (always wins over allow).
func NewPolicy(allowed, denied []string) Policy {
	p := Policy{}
	if len(allowed) > 0 {
		p.allow = toSet(allowed)
	}
	p.deny = toSet(denied)
	return p
}

func toSet(names []string) map[string]bool {
	s := make(map[string]bool, len(names))
	for _, n := range names {
		s[strings.TrimSpace(n)] = true
	}
	return s
}

// Allows reports whether a tool name may be executed under this policy.
func (p Policy) Allows(name string) bool {
	if p.deny[name] {
		return false
	}
	if p.allow == nil {
		return true
	}
	return p.allow[name]
}
