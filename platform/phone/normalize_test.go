package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	cases := map[string]string{
		"06 12 34 56 78":    "+33612345678",
		"+33 1 42 68 53 00": "+33142685300",
		"  ":                "",
		"not a number":      "not a number",
	}

	for input, want := range cases {
		if got := NormalizeE164(input); got != want {
			t.Errorf("NormalizeE164(%q) = %q, want %q", input, got, want)
		}
	}
}
