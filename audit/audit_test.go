package audit

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func day(s string) time.Time {
	t, err := time.Parse("20060102 15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestAppendAndQuery(t *testing.T) {
	l := NewLog(t.TempDir())

	for _, r := range []Result{
		{RunID: "r1", SiteName: "A", Status: StatusSuccess, Collected: 10, StartedAt: day("20260301 09:00")},
		{RunID: "r1", SiteName: "B", Status: StatusError, Errors: []string{"identifiants manquants"}, StartedAt: day("20260301 09:05")},
		{RunID: "r2", SiteName: "A", Status: StatusSuccess, Collected: 12, StartedAt: day("20260302 09:00")},
	} {
		if err := l.Append(r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	t.Run("all days, most recent first", func(t *testing.T) {
		got, err := l.Query("", 0)
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("results: got %d, want 3", len(got))
		}
		if got[0].RunID != "r2" {
			t.Errorf("first result: got run %q, want r2", got[0].RunID)
		}
		if got[1].SiteName != "B" || got[2].SiteName != "A" {
			t.Errorf("within-day order not reversed: %q then %q", got[1].SiteName, got[2].SiteName)
		}
	})

	t.Run("date filter", func(t *testing.T) {
		got, err := l.Query("20260301", 0)
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("results: got %d, want 2", len(got))
		}
	})

	t.Run("limit", func(t *testing.T) {
		got, err := l.Query("", 1)
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if len(got) != 1 || got[0].RunID != "r2" {
			t.Errorf("results: got %+v, want the single newest", got)
		}
	})

	t.Run("missing date", func(t *testing.T) {
		got, err := l.Query("19990101", 0)
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("results: got %d, want 0", len(got))
		}
	})
}

func TestAppendCreatesPerDayFiles(t *testing.T) {
	dir := t.TempDir()
	l := NewLog(dir)

	l.Append(Result{SiteName: "A", StartedAt: day("20260301 09:00")})
	l.Append(Result{SiteName: "B", StartedAt: day("20260302 09:00")})

	for _, want := range []string{"scraping_20260301.jsonl", "scraping_20260302.jsonl"} {
		if _, err := os.Stat(filepath.Join(dir, want)); err != nil {
			t.Errorf("missing %s: %v", want, err)
		}
	}
}

func TestQuerySkipsCorruptLines(t *testing.T) {
	dir := t.TempDir()
	l := NewLog(dir)
	l.Append(Result{SiteName: "A", StartedAt: day("20260301 09:00")})

	f, err := os.OpenFile(filepath.Join(dir, "scraping_20260301.jsonl"), os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString("{not json\n")
	f.Close()

	l.Append(Result{SiteName: "B", StartedAt: day("20260301 10:00")})

	got, err := l.Query("20260301", 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("results: got %d, want 2 (corrupt line skipped)", len(got))
	}
}
