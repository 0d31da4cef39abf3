package tasks

import "testing"

func TestSelectionDeduplicates(t *testing.T) {
	s := NewSelection()
	added := s.Add(pdf("a.pdf", 1), pdf("b.pdf", 2))
	if len(added) != 2 {
		t.Fatalf("Add() = %d files, want 2", len(added))
	}

	// same name, different size is a different file
	added = s.Add(pdf("a.pdf", 1), pdf("a.pdf", 9))
	if len(added) != 1 || added[0].Size != 9 {
		t.Fatalf("Add() = %+v, want only a.pdf:9", added)
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}
}

func TestSelectionDefaultIsMemoized(t *testing.T) {
	s := NewSelection()
	if _, ok := s.Default(); ok {
		t.Fatal("empty selection should have no default")
	}

	s.Add(pdf("a.pdf", 1), pdf("b.pdf", 2))
	f, ok := s.Default()
	if !ok || f.Name != "a.pdf" {
		t.Fatalf("Default() = %v, %v", f, ok)
	}
	v := s.defVersion

	if f, _ := s.Default(); f.Name != "a.pdf" || s.defVersion != v {
		t.Error("Default() recomputed without a change")
	}

	s.Remove(pdf("a.pdf", 1).Key())
	if f, _ := s.Default(); f.Name != "b.pdf" {
		t.Errorf("Default() = %s after removal, want b.pdf", f.Name)
	}
	if s.Remove("nope") {
		t.Error("Remove() of a missing key reported true")
	}
}
