package gotham

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestPercentDecode(t *testing.T) {
	cases := []struct {
		in   string
		out  string
		isOK bool
	}{
		{"abc", "abc", true},
		{"t-shirt", "t-shirt", true},
		{"a%20b", "a b", true},
		{"%E4%BD%A0%E5%A5%BD", "你好", true},
		{"a+b", "a+b", true},
		{"100%", "100%", true},
		{"%zz", "%zz", true},
		{"%4", "%4", true},
		{"%41%42", "AB", true},
		{"%FF", "", false},
		{"%C3%28", "", false},
	}
	for _, tc := range cases {
		out, ok := PercentDecode(tc.in)
		if ok != tc.isOK {
			t.Fatalf("PercentDecode(%q) ok = %v, want %v", tc.in, ok, tc.isOK)
		}
		if ok && out != tc.out {
			t.Fatalf("PercentDecode(%q) = %q, want %q", tc.in, out, tc.out)
		}
	}
}

func TestFormDecode(t *testing.T) {
	out, ok := FormDecode("a+b%2Bc")
	assert.True(t, ok)
	assert.Equal(t, "a b+c", out)

	_, ok = FormDecode("%80")
	assert.False(t, ok)
}

func TestSplitPath(t *testing.T) {
	cases := map[string][]string{
		"":                {},
		"/":               {},
		"/a":              {"a"},
		"/a/":             {"a"},
		"//a//b/":         {"a", "b"},
		"/a%2Fb/c":        {"a/b", "c"},
		"/products/t%20x": {"products", "t x"},
		"/bad/%FF/ok":     {"bad", "ok"},
	}
	for in, want := range cases {
		if diff := cmp.Diff(want, SplitPath(in)); diff != "" {
			t.Fatalf("SplitPath(%q) mismatch (-want +got):\n%s", in, diff)
		}
	}
}

func TestParseQuery(t *testing.T) {
	cases := []struct {
		in   string
		want SegmentMapping
	}{
		{"", SegmentMapping{}},
		{"a=1", SegmentMapping{"a": {"1"}}},
		{"a=1&a=2&b=x+y", SegmentMapping{"a": {"1", "2"}, "b": {"x y"}}},
		{"flag&a=1", SegmentMapping{"a": {"1"}}},
		{"a=1=2", SegmentMapping{"a": {"1"}}},
		{"k%20ey=v%2B", SegmentMapping{"k ey": {"v+"}}},
		{"%FF=1&a=2", SegmentMapping{"a": {"2"}}},
		{"a=%FF", SegmentMapping{"a": {}}},
		{"a=1&a=%FF", SegmentMapping{"a": {"1"}}},
		{"a=", SegmentMapping{"a": {""}}},
	}
	for _, tc := range cases {
		if diff := cmp.Diff(tc.want, ParseQuery(tc.in)); diff != "" {
			t.Fatalf("ParseQuery(%q) mismatch (-want +got):\n%s", tc.in, diff)
		}
	}
}
