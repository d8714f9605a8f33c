package keyword

import (
	"testing"
)

func contains(list []string, want string) bool {
	for _, item := range list {
		if item == want {
			return true
		}
	}
	return false
}

func TestExtractFiltersStopwords(t *testing.T) {
	e := NewTermExtractor()
	got, err := e.Extract("the process is scheduled by the kernel", "os")
	if err != nil {
		t.Fatal(err)
	}
	for _, stop := range []string{"the", "is", "by"} {
		if contains(got, stop) {
			t.Fatalf("stopword %q leaked into %v", stop, got)
		}
	}
	if !contains(got, "process") || !contains(got, "kernel") {
		t.Fatalf("expected content words, got %v", got)
	}
}

func TestExtractPreservesCompoundTerms(t *testing.T) {
	e := NewTermExtractor()
	got, err := e.Extract("Virtual Memory maps pages; Dependency Injection decouples components", "cs")
	if err != nil {
		t.Fatal(err)
	}
	if !contains(got, "virtual memory") {
		t.Fatalf("compound term missing from %v", got)
	}
	if !contains(got, "dependency injection") {
		t.Fatalf("compound term missing from %v", got)
	}
	// Individual tokens come along with the compound.
	if !contains(got, "memory") || !contains(got, "injection") {
		t.Fatalf("component tokens missing from %v", got)
	}
}

func TestExtractDeduplicatesAndLowercases(t *testing.T) {
	e := NewTermExtractor()
	got, err := e.Extract("Mutex mutex MUTEX", "os")
	if err != nil {
		t.Fatal(err)
	}
	count := 0
	for _, kw := range got {
		if kw == "mutex" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected one deduplicated %q, got %v", "mutex", got)
	}
}

func TestExtractKeepsTechnicalSymbols(t *testing.T) {
	e := NewTermExtractor()
	got, err := e.Extract("compare c++ with c# and node.js", "cs")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"c++", "c#", "node.js"} {
		if !contains(got, want) {
			t.Fatalf("expected %q in %v", want, got)
		}
	}
}

func TestExtractDropsSingleRuneTokens(t *testing.T) {
	e := NewTermExtractor()
	got, err := e.Extract("x y stack", "cs")
	if err != nil {
		t.Fatal(err)
	}
	if contains(got, "x") || contains(got, "y") {
		t.Fatalf("single-rune tokens should be dropped, got %v", got)
	}
	if !contains(got, "stack") {
		t.Fatalf("expected %q in %v", "stack", got)
	}
}
