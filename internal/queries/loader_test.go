package queries

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeQueries(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queries.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_MissingFileIsEmptySet(t *testing.T) {
	set, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if set.Len() != 0 {
		t.Errorf("Len = %d, want 0", set.Len())
	}
	if _, ok := set.Get("anything"); ok {
		t.Error("empty set should not resolve names")
	}
}

func TestLoad_Valid(t *testing.T) {
	path := writeQueries(t, `queries:
  - name: VPN_Logins
    description: VPN session starts
    spl: "search index=main sourcetype=vpn earliest=-{window} | stats count by user"
    window: 4h
  - name: dns_tunneling
    spl: "search index=main sourcetype=dns | stats avg(len) by src"
`)

	set, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if set.Len() != 2 {
		t.Fatalf("Len = %d, want 2", set.Len())
	}

	// Names are lowercased and sorted.
	names := set.Names()
	if names[0] != "dns_tunneling" || names[1] != "vpn_logins" {
		t.Errorf("Names = %v", names)
	}

	q, ok := set.Get("vpn_logins")
	if !ok {
		t.Fatal("vpn_logins not found")
	}
	if q.DefaultWindow() != "4h" {
		t.Errorf("DefaultWindow = %q, want 4h", q.DefaultWindow())
	}
	if got := q.Build("30m"); got != "search index=main sourcetype=vpn earliest=-30m | stats count by user" {
		t.Errorf("Build = %q", got)
	}

	// Lookup is case-insensitive.
	if _, ok := set.Get("VPN_LOGINS"); !ok {
		t.Error("uppercase lookup should resolve")
	}

	q2, _ := set.Get("dns_tunneling")
	if q2.DefaultWindow() != "15m" {
		t.Errorf("fallback DefaultWindow = %q, want 15m", q2.DefaultWindow())
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"broken yaml", "queries: [unclosed"},
		{"missing name", "queries:\n  - spl: search index=main\n"},
		{"missing spl", "queries:\n  - name: broken\n"},
		{"whitespace in name", "queries:\n  - name: bad name\n    spl: search index=main\n"},
		{"duplicate name", "queries:\n  - name: dup\n    spl: search a\n  - name: DUP\n    spl: search b\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeQueries(t, tt.content)
			_, err := Load(path)
			if err == nil {
				t.Fatal("Load succeeded, want error")
			}
			if !errors.Is(err, errInvalidQueryFile) {
				t.Errorf("err = %v, want errInvalidQueryFile", err)
			}
		})
	}
}
