package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rodysim/rody/pkg/scenario"
	"github.com/rodysim/rody/pkg/sim"
	"github.com/rodysim/rody/pkg/sink"
)

func newRecord(at time.Time) *Record {
	r := NewRecord()
	r.CreatedAt = at
	r.Scenario = scenario.Default()
	r.Format = sink.FormatText
	r.Summary = sim.Summary{Steps: 1, End: 0.1, Step: 0.1, Distance: 0.1}
	r.Output = " -0.100  0.000  0.000  -1.000  0.000  0.000 \n"
	return r
}

func backends(t *testing.T) map[string]Store {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error: %v", err)
	}
	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fs,
	}
}

func mustPut(t *testing.T, s Store, r *Record) {
	t.Helper()
	if err := s.Put(context.Background(), r); err != nil {
		t.Fatalf("Put(%s) error: %v", r.ID, err)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()

			r := newRecord(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
			mustPut(t, s, r)

			got, err := s.Get(ctx, r.ID)
			if err != nil {
				t.Fatalf("Get() error: %v", err)
			}
			if got == nil {
				t.Fatal("Get() = nil, want the stored record")
			}
			if got.ID != r.ID {
				t.Errorf("ID = %s, want %s", got.ID, r.ID)
			}
			if !got.CreatedAt.Equal(r.CreatedAt) {
				t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, r.CreatedAt)
			}
			if got.Scenario != r.Scenario {
				t.Errorf("Scenario = %+v, want %+v", got.Scenario, r.Scenario)
			}
			if got.Summary != r.Summary {
				t.Errorf("Summary = %+v, want %+v", got.Summary, r.Summary)
			}
			if got.Output != r.Output {
				t.Errorf("Output = %q, want %q", got.Output, r.Output)
			}

			if err := s.Delete(ctx, r.ID); err != nil {
				t.Fatalf("Delete() error: %v", err)
			}
			if got, err := s.Get(ctx, r.ID); err != nil || got != nil {
				t.Errorf("Get() after Delete = %v, %v; want nil, nil", got, err)
			}
			if err := s.Delete(ctx, r.ID); err != nil {
				t.Errorf("second Delete() error: %v", err)
			}
		})
	}
}

func TestStoreGetMissing(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if got, err := s.Get(ctx, NewRecord().ID); err != nil || got != nil {
				t.Errorf("Get(missing) = %v, %v; want nil, nil", got, err)
			}
		})
	}
}

func TestStoreList(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var ids []string
			for i := range 5 {
				r := newRecord(base.Add(time.Duration(i) * time.Minute))
				mustPut(t, s, r)
				ids = append(ids, r.ID)
			}

			all, err := s.List(ctx, ListOptions{})
			if err != nil {
				t.Fatalf("List() error: %v", err)
			}
			if len(all) != 5 {
				t.Fatalf("List() returned %d records, want 5", len(all))
			}
			if all[0].ID != ids[4] || all[4].ID != ids[0] {
				t.Errorf("List() is not newest first: got %s..%s", all[0].ID, all[4].ID)
			}

			pageTwo, err := s.List(ctx, ListOptions{Limit: 2, Offset: 2})
			if err != nil {
				t.Fatalf("List(page 2) error: %v", err)
			}
			if len(pageTwo) != 2 {
				t.Fatalf("List(page 2) returned %d records, want 2", len(pageTwo))
			}
			if pageTwo[0].ID != ids[2] || pageTwo[1].ID != ids[1] {
				t.Errorf("page 2 = %s, %s; want %s, %s", pageTwo[0].ID, pageTwo[1].ID, ids[2], ids[1])
			}

			past, err := s.List(ctx, ListOptions{Offset: 10})
			if err != nil {
				t.Fatalf("List(offset 10) error: %v", err)
			}
			if len(past) != 0 {
				t.Errorf("List(offset 10) returned %d records, want none", len(past))
			}
		})
	}
}

func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	r := newRecord(time.Now())
	mustPut(t, s, r)

	r.Output = "changed"
	got, err := s.Get(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Output == "changed" {
		t.Error("changing the caller's record changed the stored one")
	}
}

func TestFileStoreRejectsBadIDs(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	r := newRecord(time.Now())
	r.ID = "../escape"
	if err := s.Put(ctx, r); err == nil {
		t.Error("Put() accepted a path as ID")
	}
	if got, err := s.Get(ctx, "../../etc/passwd"); err != nil || got != nil {
		t.Errorf("Get(path) = %v, %v; want nil, nil", got, err)
	}
}

func TestFileStoreSkipsCorruptFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	mustPut(t, s, newRecord(time.Now()))
	if err := os.WriteFile(filepath.Join(dir, NewRecord().ID+".json"), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}

	recs, err := s.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("List() returned %d records, want 1", len(recs))
	}
	if s.Path() != dir {
		t.Errorf("Path() = %s, want %s", s.Path(), dir)
	}
}

func TestListOptionsNormalized(t *testing.T) {
	tests := []struct {
		in, want ListOptions
	}{
		{ListOptions{}, ListOptions{Limit: DefaultListLimit}},
		{ListOptions{Limit: 10_000, Offset: -3}, ListOptions{Limit: MaxListLimit}},
		{ListOptions{Limit: 7, Offset: 2}, ListOptions{Limit: 7, Offset: 2}},
	}
	for _, tt := range tests {
		if got := tt.in.normalized(); got != tt.want {
			t.Errorf("%+v.normalized() = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestValidID(t *testing.T) {
	if id := NewRecord().ID; !ValidID(id) {
		t.Errorf("ValidID(%q) = false, want true", id)
	}
	for _, id := range []string{"", "not-a-uuid"} {
		if ValidID(id) {
			t.Errorf("ValidID(%q) = true, want false", id)
		}
	}
}
