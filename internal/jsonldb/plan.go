// Runs a QuerySpec against a RecordSet: filter, or-union, order, paginate.

package jsonldb

import (
	"cmp"
	"reflect"
	"slices"

	"github.com/maruel/jsondb/internal/models"
)

// runPlan evaluates q against the full RecordSet rows. The OR group is
// consumed: it is cleared from q once evaluated. rows is never reordered.
func (db *DB) runPlan(rows []models.Record, q *models.QuerySpec) []models.Record {
	cs := db.opts.CaseSensitive
	var result []models.Record
	if len(q.Where) > 0 {
		result = evaluateConditions(rows, q.Where, cs)
	} else {
		result = slices.Clone(rows)
	}
	if len(q.OrWhere) > 0 {
		result = union(result, evaluateConditions(rows, q.OrWhere, cs))
		q.OrWhere = nil
	}
	if q.OrderBy != nil {
		result = db.order(result, *q.OrderBy)
	}
	if q.Limit != nil {
		result = paginate(result, *q.Limit)
	}
	return result
}

// union appends the records of b that are not already in a. Records are
// compared by instance, not by id.
func union(a, b []models.Record) []models.Record {
	seen := make(map[uintptr]struct{}, len(a))
	for _, r := range a {
		seen[identity(r)] = struct{}{}
	}
	for _, r := range b {
		id := identity(r)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		a = append(a, r)
	}
	return a
}

// difference returns the records of a that are not in b, keeping a's order.
func difference(a, b []models.Record) []models.Record {
	drop := make(map[uintptr]struct{}, len(b))
	for _, r := range b {
		drop[identity(r)] = struct{}{}
	}
	out := make([]models.Record, 0, len(a))
	for _, r := range a {
		if _, ok := drop[identity(r)]; !ok {
			out = append(out, r)
		}
	}
	return out
}

// identity returns the address of the map backing r.
func identity(r models.Record) uintptr {
	return reflect.ValueOf(r).Pointer()
}

// order drops the records missing ob.Key then sorts or shuffles the rest.
// Descending order is the exact reverse of the stable ascending order.
func (db *DB) order(rows []models.Record, ob models.OrderBy) []models.Record {
	out := make([]models.Record, 0, len(rows))
	for _, r := range rows {
		if _, ok := r[ob.Key]; ok {
			out = append(out, r)
		}
	}
	switch ob.Order {
	case models.OrderRand:
		db.shuffle(out)
	case models.OrderDesc:
		sortRecords(out, ob.Key)
		slices.Reverse(out)
	default:
		sortRecords(out, ob.Key)
	}
	return out
}

// sortRecords sorts records in place by key, stable.
func sortRecords(rows []models.Record, key string) {
	slices.SortStableFunc(rows, func(a, b models.Record) int {
		return compareForSort(a[key], b[key])
	})
}

// compareForSort is a total order over JSON values: null, then booleans,
// numbers, text, and everything else (which compares equal).
func compareForSort(a, b any) int {
	ra, rb := sortRank(a), sortRank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	if n, ok := compareValues(a, b); ok {
		return n
	}
	return 0
}

func sortRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case string:
		return 3
	}
	if _, ok := toFloat(v); ok {
		return 2
	}
	return 4
}

// paginate returns rows[offset:offset+count], clamped. A negative count
// returns everything from offset.
func paginate(rows []models.Record, l models.Limit) []models.Record {
	start := min(max(l.Offset, 0), len(rows))
	end := len(rows)
	if l.Count >= 0 && l.Count < end-start {
		end = start + l.Count
	}
	return rows[start:end]
}
