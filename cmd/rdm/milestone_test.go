package main

import (
	"strings"
	"testing"
	"time"
)

func TestParseDueDateISO(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	got, err := parseDueDate("2026-11-30", now)
	if err != nil {
		t.Fatalf("parseDueDate: %v", err)
	}
	if got.Year() != 2026 || got.Month() != time.November || got.Day() != 30 {
		t.Fatalf("parseDueDate(2026-11-30) = %v", got)
	}
	if got.Location() != time.UTC {
		t.Fatalf("ISO dates should be UTC, got %v", got.Location())
	}
}

func TestParseDueDateNaturalLanguage(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	got, err := parseDueDate("tomorrow", now)
	if err != nil {
		t.Fatalf("parseDueDate(tomorrow): %v", err)
	}
	if !got.After(now) {
		t.Fatalf("tomorrow should be after now: %v", got)
	}
	if got.Sub(now) > 48*time.Hour {
		t.Fatalf("tomorrow resolved too far out: %v", got)
	}
}

func TestParseDueDateRejectsGarbage(t *testing.T) {
	_, err := parseDueDate("xyzzy", time.Now())
	if err == nil {
		t.Fatalf("expected an error")
	}
	if !strings.Contains(err.Error(), "cannot understand") {
		t.Fatalf("unexpected error: %v", err)
	}
}
