package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestISBNCheckOnly(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"isbn", "--check", "0-9752298-0-x"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "097522980X" {
		t.Fatalf("output = %q, want normalized ISBN", got)
	}
}

func TestISBNRejectsBadChecksum(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"isbn", "--check", "978-0-7475-3269-0"})

	if err := root.Execute(); err == nil {
		t.Fatalf("expected checksum error")
	}
}
