package surface

import (
	"reflect"
	"testing"
)

func TestMemory_AppendSetRemove(t *testing.T) {
	m := NewMemory()
	if m.Len() != 0 {
		t.Fatalf("new surface must be empty")
	}

	m.Append("a")
	m.Append("b")
	m.Append("c")
	if got := m.Children(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("Children = %q", got)
	}

	m.Set(1, "B")
	if got := m.Child(1); got != "B" {
		t.Fatalf("Child(1) = %q", got)
	}

	m.Remove(0)
	if got := m.Children(); !reflect.DeepEqual(got, []string{"B", "c"}) {
		t.Fatalf("Children after remove = %q", got)
	}
}

func TestMemory_OutOfRangeIsIgnored(t *testing.T) {
	m := NewMemory()
	m.Append("a")
	m.Set(5, "x")
	m.Remove(-1)
	m.Remove(7)
	if got := m.Children(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("out-of-range ops must not mutate: %q", got)
	}
	if got := m.Child(3); got != "" {
		t.Fatalf("Child out of range = %q, want empty", got)
	}
}

func TestMemory_ChildrenIsASnapshot(t *testing.T) {
	m := NewMemory()
	m.Append("a")
	snap := m.Children()
	m.Set(0, "changed")
	if snap[0] != "a" {
		t.Fatalf("snapshot must not alias the live surface")
	}
}

func TestMemory_VersionAdvances(t *testing.T) {
	m := NewMemory()
	v0 := m.Version()
	m.Append("a")
	v1 := m.Version()
	if v1 <= v0 {
		t.Fatalf("version did not advance: %d -> %d", v0, v1)
	}
	m.Set(0, "b")
	m.Remove(0)
	if m.Version() <= v1 {
		t.Fatalf("version did not advance on set/remove")
	}
}
