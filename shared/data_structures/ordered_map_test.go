package data_structures

import "testing"

func TestOrderedMapPreservesInsertionOrder(t *testing.T) {
	om := NewOrderedMap[string, int]()
	om.Set("c", 3)
	om.Set("a", 1)
	om.Set("b", 2)

	keys := om.Keys()
	want := []string{"c", "a", "b"}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %d", len(want), len(keys))
	}
	for i, k := range want {
		if keys[i] != k {
			t.Errorf("key[%d] = %q, want %q", i, keys[i], k)
		}
	}
}

func TestOrderedMapUpdateKeepsPosition(t *testing.T) {
	om := NewOrderedMap[string, int]()
	om.Set("a", 1)
	om.Set("b", 2)
	om.Set("a", 100)

	keys := om.Keys()
	if keys[0] != "a" || keys[1] != "b" {
		t.Errorf("update should not reposition key, got %v", keys)
	}
	v, _ := om.Get("a")
	if v != 100 {
		t.Errorf("expected updated value 100, got %d", v)
	}
}

func TestOrderedMapDeleteThenFirst(t *testing.T) {
	om := NewOrderedMap[string, int]()
	om.Set("a", 1)
	om.Set("b", 2)
	om.Delete("a")

	k, v, ok := om.First()
	if !ok || k != "b" || v != 2 {
		t.Errorf("expected first = (b, 2), got (%v, %v, %v)", k, v, ok)
	}
	if om.Len() != 1 {
		t.Errorf("expected len 1, got %d", om.Len())
	}
}

func TestOrderedMapEmptyFirst(t *testing.T) {
	om := NewOrderedMap[string, int]()
	_, _, ok := om.First()
	if ok {
		t.Error("expected First to report false on empty map")
	}
}
