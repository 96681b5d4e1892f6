package repository

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/foxseedlab/gymvoice/internal/repository"
	"github.com/foxseedlab/gymvoice/internal/workout"
)

func openTestSQLite(t *testing.T) *SQLiteRepository {
	t.Helper()
	r, err := OpenSQLite(filepath.Join(t.TempDir(), "history", "gymvoice.db"))
	if err != nil {
		t.Fatalf("OpenSQLite returned error: %v", err)
	}
	t.Cleanup(func() {
		_ = r.Shutdown()
	})
	return r
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func testSession(id, owner string, start time.Time) workout.Session {
	end := start.Add(47 * time.Minute)
	return workout.Session{
		ID:        id,
		OwnerID:   owner,
		StartTime: start,
		EndTime:   &end,
		Exercises: []workout.Exercise{
			{Name: "Bench Press", Sets: intPtr(3), Reps: intPtr(10), Weight: floatPtr(50), WeightUnit: workout.UnitKg, SourceText: "bench three by ten at fifty kilos"},
			{Name: "Treadmill", Duration: "20 min", Distance: "3 km", SourceText: "ran three k"},
			{Name: "Plank", SourceText: "plank"},
		},
		UserWeight: "180 lbs",
	}
}

func TestSQLite_RoundTrip(t *testing.T) {
	r := openTestSQLite(t)
	ctx := context.Background()
	start := time.Date(2026, 4, 5, 7, 30, 0, 123000000, time.UTC)
	want := testSession("s-1", "u-1", start)

	if err := r.Append(ctx, want); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	list, err := r.List(ctx, repository.ListFilter{})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one session, got %d", len(list))
	}
	if !reflect.DeepEqual(list[0], want) {
		t.Fatalf("round trip mismatch:\n got: %+v\nwant: %+v", list[0], want)
	}
}

func TestSQLite_ListOrderAndFilter(t *testing.T) {
	r := openTestSQLite(t)
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	for i, owner := range []string{"u-1", "u-2", "u-1"} {
		s := testSession("s-"+string(rune('a'+i)), owner, base.Add(time.Duration(i)*24*time.Hour))
		if err := r.Append(ctx, s); err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
	}

	all, err := r.List(ctx, repository.ListFilter{})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(all) != 3 || all[0].ID != "s-c" || all[2].ID != "s-a" {
		t.Fatalf("expected most recent first, got %v", sessionIDs(all))
	}

	mine, err := r.List(ctx, repository.ListFilter{OwnerID: "u-1", Limit: 1})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != "s-c" {
		t.Fatalf("unexpected filtered list: %v", sessionIDs(mine))
	}
}

func TestSQLite_UpdateByID(t *testing.T) {
	r := openTestSQLite(t)
	ctx := context.Background()
	s := testSession("s-1", "u-1", time.Date(2026, 4, 5, 7, 30, 0, 0, time.UTC))
	if err := r.Append(ctx, s); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}

	analysis := workout.Analysis{CaloriesBurned: "350 kcal", Summary: "Balanced session.", Recommendation: "Add mobility work."}
	if err := r.UpdateByID(ctx, "s-1", repository.Patch{Analysis: &analysis}); err != nil {
		t.Fatalf("UpdateByID returned error: %v", err)
	}
	got, err := r.Get(ctx, "s-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Analysis == nil || *got.Analysis != analysis {
		t.Fatalf("unexpected analysis: %+v", got.Analysis)
	}
	if got.UserWeight != "180 lbs" {
		t.Fatalf("patch must keep untouched fields, got weight %q", got.UserWeight)
	}

	if err := r.UpdateByID(ctx, "missing", repository.Patch{Analysis: &analysis}); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := r.Get(ctx, "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLite_AppendRejectsIncompleteSessions(t *testing.T) {
	r := openTestSQLite(t)
	ctx := context.Background()

	empty := testSession("s-1", "u-1", time.Date(2026, 4, 5, 7, 30, 0, 0, time.UTC))
	empty.Exercises = nil
	if err := r.Append(ctx, empty); !errors.Is(err, repository.ErrNoExercises) {
		t.Fatalf("expected ErrNoExercises, got %v", err)
	}
	running := testSession("s-2", "u-1", time.Date(2026, 4, 5, 7, 30, 0, 0, time.UTC))
	running.EndTime = nil
	if err := r.Append(ctx, running); !errors.Is(err, repository.ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
	list, err := r.List(ctx, repository.ListFilter{})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("rejected sessions must not be stored, got %d", len(list))
	}
}

func TestSQLite_ReopenKeepsSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gymvoice.db")
	r, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite returned error: %v", err)
	}
	_ = r.Shutdown()

	r, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen returned error: %v", err)
	}
	defer func() {
		_ = r.Shutdown()
	}()
	version, err := sqliteUserVersion(r.db)
	if err != nil {
		t.Fatalf("sqliteUserVersion returned error: %v", err)
	}
	if version != CurrentSQLiteSchemaVersion {
		t.Fatalf("expected schema version %d, got %d", CurrentSQLiteSchemaVersion, version)
	}
}

func sessionIDs(list []workout.Session) []string {
	ids := make([]string, 0, len(list))
	for _, s := range list {
		ids = append(ids, s.ID)
	}
	return ids
}
