package ash

import "testing"

func TestCanonicalizeURLEncoded_E2(t *testing.T) {
	got, err := CanonicalizeURLEncoded("z=3&a=1&a=2&b=hello%20world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "a=1&a=2&b=hello%20world&z=3"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCanonicalizeURLEncoded_Empty(t *testing.T) {
	got, err := CanonicalizeURLEncoded("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Fatalf("got %q, want empty string", got)
	}
}

func TestCanonicalizeURLEncoded_PlusDecodesToSpace(t *testing.T) {
	got, err := CanonicalizeURLEncoded("a=hello+world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "a=hello%20world" {
		t.Fatalf("got %q", got)
	}
}

func TestCanonicalizeURLEncoded_MissingEqualsIsEmptyValue(t *testing.T) {
	got, err := CanonicalizeURLEncoded("flag")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "flag=" {
		t.Fatalf("got %q", got)
	}
}

func TestCanonicalizeURLEncoded_DuplicateKeysPreserveRelativeOrder(t *testing.T) {
	got, err := CanonicalizeURLEncoded("b=2&a=x&b=1&a=y")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Stable sort by key: "a" entries keep x before y, "b" entries keep 2
	// before 1, both groups in their original relative order.
	want := "a=x&a=y&b=2&b=1"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCanonicalizeURLEncoded_MalformedPercentEscape(t *testing.T) {
	for _, input := range []string{"a=%", "a=%2", "a=%zz", "a=%2g"} {
		if _, err := CanonicalizeURLEncoded(input); err == nil {
			t.Errorf("input %q: expected error, got none", input)
		}
	}
}

func TestCanonicalizeURLEncoded_Determinism(t *testing.T) {
	input := "c=3&a=1&b=2&a=0"
	a, err := CanonicalizeURLEncoded(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := CanonicalizeURLEncoded(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Fatalf("non-deterministic output: %q != %q", a, b)
	}
}
