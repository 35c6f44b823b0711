package sanitize

import "testing"

func TestSanitize(t *testing.T) {
	sanitizer := New()
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain text", input: "Annual accounts 2026", want: "Annual accounts 2026"},
		{name: "ampersand kept readable", input: "R&D budget", want: "R&D budget"},
		{name: "tags stripped", input: "<b>Budget</b> review", want: "Budget review"},
		{name: "script removed with content", input: "<script>alert(1)</script>Plan", want: "Plan"},
		{name: "encoded markup stays encoded", input: "&lt;b&gt;x", want: "&lt;b&gt;x"},
		{name: "trimmed", input: "  Lisbon  ", want: "Lisbon"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := sanitizer.Sanitize(tc.input); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestZeroValueSanitizerUsesStrictPolicy(t *testing.T) {
	var sanitizer Sanitizer
	if got := sanitizer.Sanitize("<i>x</i>"); got != "x" {
		t.Fatalf("expected x, got %q", got)
	}
}
