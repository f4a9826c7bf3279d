package sanitize

import "testing"

func TestText(t *testing.T) {
	cases := map[string]string{
		"  hello  ":                          "hello",
		"<b>bold</b> move":                   "bold move",
		"&lt;script&gt;alert(1)&lt;/script&gt;": "alert(1)",
		"line\none\x00\x07":                  "line\none",
	}
	for in, want := range cases {
		if got := Text(in); got != want {
			t.Fatalf("Text(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTextPtr(t *testing.T) {
	if TextPtr(nil) != nil {
		t.Fatal("expected nil for nil input")
	}
	blank := " <br> "
	if TextPtr(&blank) != nil {
		t.Fatal("expected nil for blank input")
	}
	name := " Ana "
	if got := TextPtr(&name); got == nil || *got != "Ana" {
		t.Fatalf("unexpected result %v", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("ăîșțâ", 3); got != "ăîș" {
		t.Fatalf("Truncate = %q", got)
	}
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("Truncate = %q", got)
	}
}
