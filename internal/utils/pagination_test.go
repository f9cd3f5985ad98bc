package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		s    string
		def  int
		want int
	}{
		{"", 10, 10},
		{"42", 0, 42},
		{"-13", 1, -13},
		{"0012", 99, 12},
		{"x", 5, 5},
		{" 42", 7, 7},
		{"999999999999999999999999", -1, -1},
	}

	for _, tc := range cases {
		if got := AtoiDefault(tc.s, tc.def); got != tc.want {
			t.Fatalf("AtoiDefault(%q, %d) = %d; want %d", tc.s, tc.def, got, tc.want)
		}
	}
}

func TestClampLimit(t *testing.T) {
	cases := []struct {
		s          string
		def, upper int
		want       int
	}{
		{"", 200, 1000, 200},
		{"50", 200, 1000, 50},
		{" 50 ", 200, 1000, 50},
		{"0", 200, 1000, 200},
		{"-4", 200, 1000, 200},
		{"5000", 200, 1000, 1000},
		{"5000", 200, 0, 5000},
		{"abc", 200, 1000, 200},
	}
	for _, tc := range cases {
		if got := ClampLimit(tc.s, tc.def, tc.upper); got != tc.want {
			t.Fatalf("ClampLimit(%q, %d, %d) = %d; want %d", tc.s, tc.def, tc.upper, got, tc.want)
		}
	}
}

func TestFlag(t *testing.T) {
	for _, s := range []string{"1", "true", "TRUE", " yes ", "on"} {
		if !Flag(s) {
			t.Fatalf("Flag(%q) = false", s)
		}
	}
	for _, s := range []string{"", "0", "false", "no", "2"} {
		if Flag(s) {
			t.Fatalf("Flag(%q) = true", s)
		}
	}
}
