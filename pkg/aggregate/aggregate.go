// Package aggregate shapes raw upstream feature records into clean,
// year-sorted series. Upstream data is loosely typed: years and values may
// arrive as numbers or numeric strings, sub-regions of the same region are
// reported as separate records, and individual records can be malformed.
package aggregate

import (
	"sort"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/aonuma/popscope/pkg/series"
)

// FeatureReader exposes the three properties the aggregator needs from one
// raw feature record. Implementations own the upstream key convention, so
// the aggregation logic never sees raw property names. The bool is false
// when the property is missing or fails to parse.
type FeatureReader interface {
	RegionName() (string, bool)
	Year() (int, bool)
	Value() (int, bool)
}

// Result carries the shaped points plus diagnostics.
type Result struct {
	Points []series.Point
	// Dropped counts records that were skipped because their name property
	// was unreadable or, for records matching the target name, because year
	// or value failed to parse as an integer. Dropping is policy, not an
	// error: partial upstream data must not fail the whole aggregation.
	Dropped int
}

// Series filters records down to those whose name property exactly matches
// targetName (no trimming or width folding), sums values of records sharing
// a year, and returns one point per distinct year in ascending year order.
// An empty result is not an error. Output depends only on the input, so
// re-running over the same records yields identical output.
func Series(features []FeatureReader, targetName string) Result {
	var res Result

	totals := make(map[int]int)
	for _, f := range features {
		name, ok := f.RegionName()
		if !ok {
			res.Dropped++
			continue
		}
		if name != targetName {
			continue
		}
		year, ok := f.Year()
		if !ok {
			res.Dropped++
			continue
		}
		value, ok := f.Value()
		if !ok {
			res.Dropped++
			continue
		}
		totals[year] += value
	}

	years := make([]int, 0, len(totals))
	for y := range totals {
		years = append(years, y)
	}
	sort.Ints(years)

	res.Points = make([]series.Point, 0, len(years))
	for _, y := range years {
		res.Points = append(res.Points, series.Point{Year: y, Value: totals[y]})
	}
	return res
}

// JSONFeature reads one feature's properties object (a gjson subtree) using
// configurable property keys. This is the production FeatureReader: both the
// upstream client and tests build these from raw response JSON.
type JSONFeature struct {
	Props    gjson.Result
	NameKey  string
	YearKey  string
	ValueKey string
}

func (j JSONFeature) RegionName() (string, bool) {
	v := j.Props.Get(j.NameKey)
	if v.Type != gjson.String {
		return "", false
	}
	return v.Str, true
}

func (j JSONFeature) Year() (int, bool) {
	return intProp(j.Props.Get(j.YearKey))
}

func (j JSONFeature) Value() (int, bool) {
	return intProp(j.Props.Get(j.ValueKey))
}

// intProp parses a loosely typed property as an integer. JSON numbers are
// truncated; strings must parse with strconv.Atoi. Anything else fails.
func intProp(v gjson.Result) (int, bool) {
	switch v.Type {
	case gjson.Number:
		return int(v.Int()), true
	case gjson.String:
		n, err := strconv.Atoi(v.Str)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
