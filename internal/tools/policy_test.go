package tools

import "testing"

func TestPolicyUnrestrictedAllowsEverythingNotDenied(t *testing.T) {
	p := NewPolicy(nil, []string{"exec"})
	if p.Allows("exec") {
		t.Fatal("exec should be denied")
	}
	if !p.Allows("read_file") {
		t.Fatal("read_file should be allowed by default")
	}
}

func TestPolicyAllowListRestricts(t *testing.T) {
	p := NewPolicy([]string{"read_file", "list_dir"}, nil)
	if !p.Allows("read_file") {
		t.Fatal("read_file should be allowed")
	}
	if p.Allows("exec") {
		t.Fatal("exec should not be allowed when not in the allow list")
	}
}

func TestPolicyDenyWinsOverAllow(t *testing.T) {
	p := NewPolicy([]string{"exec"}, []string{"exec"})
	if p.Allows("exec") {
		t.Fatal("deny should win over allow")
	}
}
