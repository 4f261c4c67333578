package aggregate

import (
	"reflect"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/aonuma/popscope/pkg/series"
)

// feature builds a JSONFeature from a raw properties JSON object, using the
// default key names.
func feature(props string) FeatureReader {
	return JSONFeature{
		Props:    gjson.Parse(props),
		NameKey:  "prefectureName",
		YearKey:  "year",
		ValueKey: "value",
	}
}

func TestAdditiveMerge(t *testing.T) {
	// Sub-regions of the same region report separately; values for the
	// same year must be summed.
	res := Series([]FeatureReader{
		feature(`{"prefectureName":"X","year":2000,"value":100}`),
		feature(`{"prefectureName":"X","year":2000,"value":50}`),
	}, "X")

	want := []series.Point{{Year: 2000, Value: 150}}
	if !reflect.DeepEqual(res.Points, want) {
		t.Fatalf("expected %v, got %v", want, res.Points)
	}
}

func TestSortedAscendingByYear(t *testing.T) {
	res := Series([]FeatureReader{
		feature(`{"prefectureName":"X","year":2010,"value":3}`),
		feature(`{"prefectureName":"X","year":1995,"value":1}`),
		feature(`{"prefectureName":"X","year":2000,"value":2}`),
	}, "X")

	want := []series.Point{{Year: 1995, Value: 1}, {Year: 2000, Value: 2}, {Year: 2010, Value: 3}}
	if !reflect.DeepEqual(res.Points, want) {
		t.Fatalf("expected years ascending %v, got %v", want, res.Points)
	}
}

func TestNumericStringsParse(t *testing.T) {
	// Upstream often sends years and values as strings.
	res := Series([]FeatureReader{
		feature(`{"prefectureName":"X","year":"1995","value":"120"}`),
	}, "X")

	want := []series.Point{{Year: 1995, Value: 120}}
	if !reflect.DeepEqual(res.Points, want) {
		t.Fatalf("expected %v, got %v", want, res.Points)
	}
}

func TestMalformedRecordsDroppedSilently(t *testing.T) {
	res := Series([]FeatureReader{
		feature(`{"prefectureName":"X","year":"abc","value":"10"}`),
		feature(`{"prefectureName":"X","year":2000}`),
		feature(`{"year":2000,"value":5}`),
	}, "X")

	if len(res.Points) != 0 {
		t.Fatalf("expected no points, got %v", res.Points)
	}
	if res.Dropped != 3 {
		t.Fatalf("expected 3 dropped records, got %d", res.Dropped)
	}
}

func TestNameFilterIsExact(t *testing.T) {
	res := Series([]FeatureReader{
		feature(`{"prefectureName":"Y","year":2000,"value":100}`),
		feature(`{"prefectureName":" X","year":2000,"value":100}`),
		feature(`{"prefectureName":"X","year":2000,"value":7}`),
	}, "X")

	want := []series.Point{{Year: 2000, Value: 7}}
	if !reflect.DeepEqual(res.Points, want) {
		t.Fatalf("expected only exact name matches %v, got %v", want, res.Points)
	}
	// Non-matching names are filtered, not dropped.
	if res.Dropped != 0 {
		t.Fatalf("expected 0 dropped, got %d", res.Dropped)
	}
}

func TestEmptyWhenNothingMatches(t *testing.T) {
	res := Series([]FeatureReader{
		feature(`{"prefectureName":"Y","year":2000,"value":100}`),
	}, "X")

	if len(res.Points) != 0 {
		t.Fatalf("expected empty result, got %v", res.Points)
	}
}

func TestIdempotent(t *testing.T) {
	features := []FeatureReader{
		feature(`{"prefectureName":"X","year":2005,"value":10}`),
		feature(`{"prefectureName":"X","year":1995,"value":20}`),
		feature(`{"prefectureName":"X","year":2005,"value":"5"}`),
		feature(`{"prefectureName":"X","year":"bad","value":1}`),
	}

	first := Series(features, "X")
	second := Series(features, "X")

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results, got %v then %v", first, second)
	}
}
