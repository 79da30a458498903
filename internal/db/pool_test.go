package db

import "testing"

func TestRedact(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "", want: "<empty>"},
		{in: "postgres://meter:s3cret@db:5432/rental", want: "postgres://meter:xxxxx@db:5432/rental"},
		{in: "postgres://db:5432/rental?sslmode=disable", want: "postgres://db:5432/rental?sslmode=disable"},
	}
	for _, tc := range cases {
		if got := redact(tc.in); got != tc.want {
			t.Errorf("redact(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
