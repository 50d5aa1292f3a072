package history

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"arp/api/internal/blocks"
	"arp/api/internal/section"
)

func sections(title string) []section.Section {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	s := section.New(title, now)
	s.ID = "sec_1"
	s.Content = []blocks.Block{blocks.Paragraph("b1", "body of "+title)}
	return []section.Section{s}
}

func TestRecordListAndLoad(t *testing.T) {
	dir := t.TempDir()
	svc := New(dir)

	first, err := svc.Record("owner-1", sections("Draft"), "Avery Stone", "Initial")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if len(first.Hash) != 7 {
		t.Fatalf("expected short hash, got %q", first.Hash)
	}
	if _, err := os.Stat(filepath.Join(dir, "owner-1", sectionsFile)); err != nil {
		t.Fatalf("sections file missing: %v", err)
	}

	second, err := svc.Record("owner-1", sections("Final"), "Avery Stone", "")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if second.Hash == first.Hash {
		t.Fatal("expected a new commit for changed sections")
	}
	if second.Message != "Save 1 sections" {
		t.Fatalf("unexpected default message %q", second.Message)
	}

	items, err := svc.List("owner-1", 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != 2 || items[0].Hash != second.Hash || items[1].Hash != first.Hash {
		t.Fatalf("unexpected history: %+v", items)
	}
	if items[1].Author != "Avery Stone" || items[1].Message != "Initial" {
		t.Fatalf("unexpected commit: %+v", items[1])
	}

	limited, err := svc.List("owner-1", 1)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(limited))
	}

	loaded, err := svc.Load("owner-1", first.Hash)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded) != 1 || loaded[0].Title != "Draft" {
		t.Fatalf("unexpected loaded sections: %+v", loaded)
	}
	if got := blocks.PlainText(loaded[0].Content); got != "body of Draft" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestRecordUnchangedIsNoop(t *testing.T) {
	svc := New(t.TempDir())
	first, err := svc.Record("owner-1", sections("Same"), "a", "one")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	again, err := svc.Record("owner-1", sections("Same"), "a", "two")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if again.Hash != first.Hash {
		t.Fatalf("expected head %s, got %s", first.Hash, again.Hash)
	}
	items, _ := svc.List("owner-1", 0)
	if len(items) != 1 {
		t.Fatalf("expected 1 commit, got %d", len(items))
	}
}

func TestListWithoutRepo(t *testing.T) {
	svc := New(t.TempDir())
	items, err := svc.List("nobody", 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty history, got %+v", items)
	}
	if _, err := svc.Load("nobody", "abc1234"); err != ErrNoHistory {
		t.Fatalf("expected ErrNoHistory, got %v", err)
	}
}

func TestOwnerPathIsSanitized(t *testing.T) {
	dir := t.TempDir()
	svc := New(dir)
	if _, err := svc.Record("../escape", sections("x"), "", ""); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "___escape")); err != nil {
		t.Fatalf("expected sanitized repo dir: %v", err)
	}
}

func TestConcurrentRecordsSerialize(t *testing.T) {
	svc := New(t.TempDir())
	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Record("owner-1", sections(string(rune('A'+i))), "w", "")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	items, err := svc.List("owner-1", 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("expected 4 commits, got %d", len(items))
	}
}

func TestSanitizeEmail(t *testing.T) {
	cases := map[string]string{
		"Avery Stone": "Avery.Stone",
		"!!":          "user",
		"a_b-c":       "a.b.c",
	}
	for in, want := range cases {
		if got := sanitizeEmail(in); got != want {
			t.Fatalf("sanitizeEmail(%q) = %q, want %q", in, got, want)
		}
	}
}
