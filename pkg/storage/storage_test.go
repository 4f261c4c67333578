package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/aonuma/popscope/pkg/series"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "popscope.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSnapshotRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	rs := series.RegionSeries{
		Code: 7,
		Name: "Pref7",
		Points: []series.Point{
			{Year: 1995, Value: 100},
			{Year: 2000, Value: 120},
		},
	}
	if err := db.SnapshotSeries(ctx, rs); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetSeries(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, rs) {
		t.Fatalf("expected %+v, got %+v", rs, got)
	}
}

func TestSnapshotIsIdempotentPerYear(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	rs := series.RegionSeries{
		Code:   1,
		Name:   "North",
		Points: []series.Point{{Year: 2000, Value: 10}},
	}
	if err := db.SnapshotSeries(ctx, rs); err != nil {
		t.Fatal(err)
	}

	// Re-exporting with a new value updates in place instead of piling up
	// duplicate rows.
	rs.Points[0].Value = 20
	if err := db.SnapshotSeries(ctx, rs); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetSeries(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Points) != 1 || got.Points[0].Value != 20 {
		t.Fatalf("expected a single updated point, got %+v", got.Points)
	}
}

func TestSnapshotRejectsInvalidCode(t *testing.T) {
	db := openTestDB(t)

	if err := db.SnapshotSeries(context.Background(), series.RegionSeries{Code: 0}); err == nil {
		t.Fatal("expected an error for an invalid region code")
	}
}

func TestListRegions(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, rs := range []series.RegionSeries{
		{Code: 2, Name: "South", Points: []series.Point{{Year: 2000, Value: 1}}},
		{Code: 1, Name: "North", Points: []series.Point{{Year: 2000, Value: 2}}},
	} {
		if err := db.SnapshotSeries(ctx, rs); err != nil {
			t.Fatal(err)
		}
	}

	regions, err := db.ListRegions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []series.Region{{Code: 1, Name: "North"}, {Code: 2, Name: "South"}}
	if !reflect.DeepEqual(regions, want) {
		t.Fatalf("expected %v, got %v", want, regions)
	}
}
