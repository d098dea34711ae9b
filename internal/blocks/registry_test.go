package blocks

import "testing"

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()

	b := Block{ID: "one", Kind: KindFullReplace, Content: "int x;"}
	if !r.Register(b) {
		t.Fatal("First registration should succeed")
	}

	got, ok := r.Get("one")
	if !ok {
		t.Fatal("Registered block should be retrievable")
	}
	if got.Content != "int x;" {
		t.Errorf("Unexpected content: %q", got.Content)
	}
}

func TestRegistryRejectsDuplicateID(t *testing.T) {
	r := NewRegistry()

	r.Register(Block{ID: "dup", Kind: KindPatch, Content: "a"})
	if r.Register(Block{ID: "dup", Kind: KindSnippet, Content: "b"}) {
		t.Error("Duplicate id must be rejected so the caller can re-roll")
	}

	got, _ := r.Get("dup")
	if got.Content != "a" {
		t.Error("Original block must survive a rejected duplicate")
	}
}

func TestRegistryListKeepsRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"a", "b", "c"} {
		r.Register(Block{ID: id, Kind: KindSnippet})
	}

	list := r.List()
	if len(list) != 3 {
		t.Fatalf("Expected 3 blocks, got %d", len(list))
	}
	for i, id := range []string{"a", "b", "c"} {
		if list[i].ID != id {
			t.Errorf("Position %d: expected %s, got %s", i, id, list[i].ID)
		}
	}
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	r.Register(Block{ID: "a"})
	r.Register(Block{ID: "b"})

	r.Remove("a")
	if _, ok := r.Get("a"); ok {
		t.Error("Removed block should be gone")
	}
	if r.Len() != 1 {
		t.Errorf("Expected 1 block left, got %d", r.Len())
	}

	// Removing an unknown id is a no-op.
	r.Remove("missing")
	if r.Len() != 1 {
		t.Error("Removing an unknown id must not change the registry")
	}
}

func TestRegistryClear(t *testing.T) {
	r := NewRegistry()
	r.Register(Block{ID: "a"})
	r.Register(Block{ID: "b"})

	r.Clear()
	if r.Len() != 0 {
		t.Errorf("Expected empty registry, got %d blocks", r.Len())
	}
	if got := r.List(); len(got) != 0 {
		t.Errorf("List after clear should be empty, got %d", len(got))
	}
}
