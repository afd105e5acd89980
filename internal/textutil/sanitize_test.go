package textutil_test

import (
	"testing"

	"bindery/internal/textutil"
)

func TestSanitizeFolderName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"ledger-010", "ledger-010"},
		{"  atlas 1887  ", "atlas 1887"},
		{"minutes: vol 2/3", "minutes- vol 2-3"},
		{`"why?" <draft>`, "why draft"},
		{"***", "---"},
		{"   ", ""},
	}
	for _, tc := range cases {
		if got := textutil.SanitizeFolderName(tc.in); got != tc.want {
			t.Errorf("SanitizeFolderName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
