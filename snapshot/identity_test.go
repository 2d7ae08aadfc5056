package snapshot

import "testing"

func TestIdentity(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com", "example_com"},
		{"https://example.com/", "example_com_"},
		{"https://example.com/about", "example_com_about"},
		{"https://example.com/about?page=2", "example_com_about"},
		{"https://example.com/about?utm_source=x&ref=y", "example_com_about"},
		{"https://example.com/pricing/tiers", "example_com_pricing_tiers"},
		{"http://example.com/about", "example_com_about"},
		{"https://example.com/a--b/c..d", "example_com_a_b_c_d"},
		{"https://sub.example.com/x", "sub_example_com_x"},
		{"https://EXAMPLE.com/x", "example_com_x"},
		{"https://Example.COM:8443/x", "example_com_x"},
	}
	for _, tt := range tests {
		got, err := Identity(tt.url)
		if err != nil {
			t.Errorf("Identity(%q): %v", tt.url, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Identity(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestIdentityQueryVariantsCollide(t *testing.T) {
	a, err := Identity("https://example.com/search?q=one")
	if err != nil {
		t.Fatal(err)
	}
	b, err := Identity("https://example.com/search?q=two")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("query variants map to different identities: %q vs %q", a, b)
	}
}

func TestIdentityErrors(t *testing.T) {
	for _, url := range []string{"", "/relative/path", "not a url ://", "mailto:x@example.com"} {
		if _, err := Identity(url); err == nil {
			t.Errorf("Identity(%q): expected error", url)
		}
	}
}
