package tools

import (
	"context"
	"net/url"
	"testing"
)

func TestCheckFetchTargetRejectsLoopback(t *testing.T) {
	u, _ := url.Parse("http://127.0.0.1:8080/secret")
	if err := checkFetchTarget(u); err == nil {
		t.Fatal("expected loopback fetch to be refused")
	}
}

func TestCheckFetchTargetRejectsUnsupportedScheme(t *testing.T) {
	u, _ := url.Parse("file:///etc/passwd")
	if err := checkFetchTarget(u); err == nil {
		t.Fatal("expected non-http(s) scheme to be refused")
	}
}

func TestWebFetchToolRefusesPrivateAddressWithoutError(t *testing.T) {
	f := NewWebFetchTool()
	out, err := f.Execute(context.Background(), map[string]interface{}{"url": "http://169.254.169.254/latest/meta-data"})
	if err != nil {
		t.Fatalf("refusal should be data, not an error: %v", err)
	}
	if out == "" {
		t.Fatal("expected a refusal message")
	}
}

func TestHTMLToTextStripsTagsAndScripts(t *testing.T) {
	html := `<html><head><script>evil()</script></head><body><p>Hello <b>World</b></p></body></html>`
	got := htmlToText(html)
	if got != "Hello World" {
		t.Fatalf("got %q", got)
	}
}
