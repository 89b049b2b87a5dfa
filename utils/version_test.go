package utils

import "testing"

func TestParseOBVersion(t *testing.T) {
	cases := []struct {
		in   string
		want OBVersion
	}{
		{"v3.1.10", OBVersion{3, 1, 10}},
		{"v4.0", OBVersion{4, 0, 0}},
		{"v10.2.3", OBVersion{10, 2, 3}},
	}
	for _, tc := range cases {
		got, err := ParseOBVersion(tc.in)
		if err != nil {
			t.Fatalf("ParseOBVersion(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseOBVersion(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestParseOBVersionRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "3.1.10", "v", "v3", "v3.1.10.4", "v3.x", "v-1.0", "version4"} {
		if _, err := ParseOBVersion(in); err == nil {
			t.Fatalf("ParseOBVersion(%q) accepted malformed input", in)
		}
	}
}

func TestOBVersionString(t *testing.T) {
	if got := MustParseOBVersion("v4.0").String(); got != "v4.0" {
		t.Fatalf("String() = %q, want v4.0", got)
	}
	if got := MustParseOBVersion("v3.1.10").String(); got != "v3.1.10" {
		t.Fatalf("String() = %q, want v3.1.10", got)
	}
}

func TestOBVersionCompare(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"v3.1.10", "v4.0", -1},
		{"v4.0", "v3.1.10", 1},
		{"v4.0", "v4.0", 0},
		{"v3.1.9", "v3.1.10", -1},
		{"v3.2", "v3.1.10", 1},
	}
	for _, tc := range cases {
		a, b := MustParseOBVersion(tc.a), MustParseOBVersion(tc.b)
		if got := a.Compare(b); got != tc.want {
			t.Fatalf("%s.Compare(%s) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
