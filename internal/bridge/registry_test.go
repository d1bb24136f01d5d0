package bridge

import "testing"

func TestRegistry_AddGetRemove(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	s := &Session{streamSID: "MZa"}

	if err := r.Add("MZa", s); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got := r.Get("MZa"); got != s {
		t.Errorf("Get returned %p, want %p", got, s)
	}
	if got := r.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}

	r.Remove("MZa")
	if got := r.Get("MZa"); got != nil {
		t.Errorf("Get after Remove = %p, want nil", got)
	}
	if got := r.Len(); got != 0 {
		t.Errorf("Len() after Remove = %d, want 0", got)
	}
}

func TestRegistry_RejectsDuplicateSID(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.Add("MZdup", &Session{streamSID: "MZdup"}); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if err := r.Add("MZdup", &Session{streamSID: "MZdup"}); err == nil {
		t.Fatal("second Add with same SID succeeded, want error")
	}
}

func TestRegistry_RemoveUnknownIsNoop(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Remove("MZmissing")
	if got := r.Len(); got != 0 {
		t.Errorf("Len() = %d, want 0", got)
	}
}
