package ids

import "testing"

func TestNew_Unique(t *testing.T) {
	a, b := New(), New()
	if a == b {
		t.Fatalf("expected distinct ids, got %q twice", a)
	}
	if !Valid(a) || !Valid(b) {
		t.Fatalf("expected generated ids to be valid")
	}
}

func TestValid_Rejects(t *testing.T) {
	if Valid("not-an-id") {
		t.Fatalf("expected invalid")
	}
}
