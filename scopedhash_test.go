package ash

import "testing"

func TestScopedBodyHash_Determinism(t *testing.T) {
	payload := `{"amount":1000,"recipient":"u1","notes":"hello"}`
	scope := []string{"amount", "recipient"}

	a, err := ScopedBodyHash(payload, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := ScopedBodyHash(payload, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Fatalf("non-deterministic hash: %q != %q", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 lowercase hex chars, got %d: %q", len(a), a)
	}
}

func TestScopedBodyHash_IgnoresUnscopedFieldChanges(t *testing.T) {
	scope := []string{"amount", "recipient"}
	a, err := ScopedBodyHash(`{"amount":1000,"recipient":"u1","notes":"hello"}`, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := ScopedBodyHash(`{"amount":1000,"recipient":"u1","notes":"world"}`, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Fatal("expected hash to ignore a field outside the scope")
	}
}

func TestScopedBodyHash_ChangesWithScopedField(t *testing.T) {
	scope := []string{"amount"}
	a, err := ScopedBodyHash(`{"amount":1000}`, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := ScopedBodyHash(`{"amount":9999}`, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == b {
		t.Fatal("expected hash to change when a scoped field changes")
	}
}

func TestScopedBodyHash_RejectsInvalidJSON(t *testing.T) {
	if _, err := ScopedBodyHash(`not json`, nil); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}
