package jsonldb

import (
	"math"
	"slices"
	"testing"

	"github.com/maruel/jsondb/internal/models"
)

func names(rows []models.Record) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i], _ = r["name"].(string)
	}
	return out
}

func TestUnion(t *testing.T) {
	a := models.Record{"name": "a"}
	b := models.Record{"name": "b"}
	c := models.Record{"name": "c"}
	// Same content as a but a distinct record.
	a2 := models.Record{"name": "a"}

	got := union([]models.Record{a, b}, []models.Record{b, c, a2, c})
	if want := []string{"a", "b", "c", "a"}; !slices.Equal(names(got), want) {
		t.Errorf("union = %v, want %v", names(got), want)
	}
}

func TestDifference(t *testing.T) {
	a := models.Record{"name": "a"}
	b := models.Record{"name": "b"}
	c := models.Record{"name": "c"}
	got := difference([]models.Record{a, b, c}, []models.Record{b, {"name": "c"}})
	if want := []string{"a", "c"}; !slices.Equal(names(got), want) {
		t.Errorf("difference = %v, want %v", names(got), want)
	}
}

func TestOrder(t *testing.T) {
	db := &DB{}
	rows := []models.Record{
		{"name": "d", "k": float64(2)},
		{"name": "x"},
		{"name": "a", "k": float64(1)},
		{"name": "b", "k": float64(2)},
		{"name": "c", "k": "text"},
		{"name": "e", "k": nil},
		{"name": "f", "k": true},
	}
	t.Run("asc", func(t *testing.T) {
		got := db.order(rows, models.OrderBy{Key: "k", Order: models.OrderAsc})
		// nil < bool < number < text; ties keep insertion order.
		if want := []string{"e", "f", "a", "d", "b", "c"}; !slices.Equal(names(got), want) {
			t.Errorf("asc = %v, want %v", names(got), want)
		}
	})
	t.Run("desc is reversed asc", func(t *testing.T) {
		asc := db.order(rows, models.OrderBy{Key: "k", Order: models.OrderAsc})
		desc := db.order(rows, models.OrderBy{Key: "k", Order: models.OrderDesc})
		slices.Reverse(asc)
		if !slices.Equal(names(desc), names(asc)) {
			t.Errorf("desc = %v, want %v", names(desc), names(asc))
		}
	})
	t.Run("rand", func(t *testing.T) {
		called := false
		db := &DB{shuffle: func(r []models.Record) {
			called = true
			slices.Reverse(r)
		}}
		got := db.order(rows, models.OrderBy{Key: "k", Order: models.OrderRand})
		if !called {
			t.Fatal("shuffle not called")
		}
		if want := []string{"f", "e", "c", "b", "a", "d"}; !slices.Equal(names(got), want) {
			t.Errorf("rand = %v, want %v", names(got), want)
		}
	})
	t.Run("input untouched", func(t *testing.T) {
		if rows[0]["name"] != "d" || rows[1]["name"] != "x" {
			t.Errorf("order modified its input: %v", names(rows))
		}
	})
}

func TestPaginate(t *testing.T) {
	rows := []models.Record{{"name": "a"}, {"name": "b"}, {"name": "c"}, {"name": "d"}}
	tests := []struct {
		name  string
		limit models.Limit
		want  []string
	}{
		{"first two", models.Limit{Count: 2}, []string{"a", "b"}},
		{"window", models.Limit{Count: 2, Offset: 1}, []string{"b", "c"}},
		{"clamped", models.Limit{Count: 10, Offset: 2}, []string{"c", "d"}},
		{"to end", models.Limit{Count: -1, Offset: 3}, []string{"d"}},
		{"past end", models.Limit{Count: 2, Offset: 9}, []string{}},
		{"zero", models.Limit{Count: 0}, []string{}},
		{"huge count", models.Limit{Count: math.MaxInt, Offset: 1}, []string{"b", "c", "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := names(paginate(rows, tt.limit)); !slices.Equal(got, tt.want) {
				t.Errorf("paginate(%+v) = %v, want %v", tt.limit, got, tt.want)
			}
		})
	}
}

func TestRunPlanConsumesOrGroup(t *testing.T) {
	db := &DB{}
	rows := []models.Record{
		{"name": "a", "age": float64(10)},
		{"name": "b", "age": float64(20)},
		{"name": "c", "age": float64(30)},
	}
	q := &models.QuerySpec{
		Table:   "t",
		Where:   []models.Condition{{Field: "age", Operator: models.OpGreaterThan, Value: 15}},
		OrWhere: []models.Condition{{Field: "name", Operator: models.OpEquals, Value: "a"}},
	}
	if got, want := names(db.runPlan(rows, q)), []string{"b", "c", "a"}; !slices.Equal(got, want) {
		t.Errorf("first run = %v, want %v", got, want)
	}
	if q.OrWhere != nil {
		t.Error("OR group not cleared")
	}
	if got, want := names(db.runPlan(rows, q)), []string{"b", "c"}; !slices.Equal(got, want) {
		t.Errorf("second run = %v, want %v", got, want)
	}
}
