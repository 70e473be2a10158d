package sanitize

import "testing"

func TestText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "<b>Rappeler</b> lundi", want: "Rappeler lundi"},
		{in: "&lt;script&gt;alert(1)&lt;/script&gt;", want: "alert(1)"},
		{in: "  plain  ", want: "plain"},
	}
	for _, tt := range tests {
		if got := Text(tt.in); got != tt.want {
			t.Errorf("Text(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNameCollapsesWhitespace(t *testing.T) {
	if got := Name("  Jean \t  Dupont "); got != "Jean Dupont" {
		t.Fatalf("unexpected name %q", got)
	}
}

func TestTextPtrNil(t *testing.T) {
	if TextPtr(nil) != nil {
		t.Fatal("expected nil")
	}
}
