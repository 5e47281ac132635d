package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/maruel/jsondb/internal/jsonldb"
	"github.com/maruel/jsondb/internal/models"
	"github.com/maruel/jsondb/internal/storage"
)

func newTestEnv(t *testing.T) *env {
	t.Helper()
	db, err := jsonldb.Open(storage.NewMemStore(), nil)
	if err != nil {
		t.Fatal(err)
	}
	return &env{db: db, stdin: strings.NewReader(""), stdout: &bytes.Buffer{}}
}

// runJSON runs a command and decodes its output into out.
func runJSON(t *testing.T, e *env, out any, args ...string) {
	t.Helper()
	buf := &bytes.Buffer{}
	e.stdout = buf
	if err := run(t.Context(), e, args); err != nil {
		t.Fatalf("%v failed: %v", args, err)
	}
	if out != nil {
		if err := json.Unmarshal(buf.Bytes(), out); err != nil {
			t.Fatalf("%v: invalid output %q: %v", args, buf.String(), err)
		}
	}
}

func getRows(t *testing.T, e *env, args ...string) []models.Record {
	t.Helper()
	var rows []models.Record
	runJSON(t, e, &rows, args...)
	return rows
}

func TestCommands(t *testing.T) {
	e := newTestEnv(t)

	var ins map[string]any
	runJSON(t, e, &ins, "insert", "-table", "Users",
		`[{"name":"Ann","age":30},{"name":"Bob","age":25},{"name":"Cid","age":41}]`)
	if ins["count"] != float64(3) || ins["last_id"] == "" {
		t.Fatalf("insert output = %v", ins)
	}

	var tables []string
	runJSON(t, e, &tables, "tables")
	if !slices.Equal(tables, []string{"users"}) {
		t.Errorf("tables = %v", tables)
	}

	rows := getRows(t, e, "get", "-table", "users", "-where", "age>=30", "-order", "age:desc")
	if got := recordNames(rows); !slices.Equal(got, []string{"Cid", "Ann"}) {
		t.Errorf("get = %v", got)
	}

	rows = getRows(t, e, "get", "-table", "users", "-where", "name:like:o", "-or", "name=ann", "-limit", "1", "-offset", "1")
	if got := recordNames(rows); !slices.Equal(got, []string{"Ann"}) {
		t.Errorf("get with or = %v", got)
	}

	var r models.Record
	runJSON(t, e, &r, "get", "-table", "users", "-id", ins["last_id"].(string))
	if r["name"] != "Cid" {
		t.Errorf("get -id = %v", r)
	}

	var upd map[string]int
	runJSON(t, e, &upd, "update", "-table", "users", "-where", "name=bob", "-set", `{"age":26,"x":1}`)
	if upd["updated"] != 1 {
		t.Errorf("update = %v", upd)
	}
	rows = getRows(t, e, "get", "-table", "users", "-where", "age=26")
	if got := recordNames(rows); !slices.Equal(got, []string{"Bob"}) {
		t.Errorf("after update = %v", got)
	}

	var del map[string]int
	runJSON(t, e, &del, "delete", "-table", "users", "-where", "age<30")
	if del["deleted"] != 1 {
		t.Errorf("delete = %v", del)
	}

	runJSON(t, e, nil, "truncate", "-table", "users")
	rows = getRows(t, e, "get", "-table", "users")
	if len(rows) != 0 {
		t.Errorf("after truncate = %v", rows)
	}

	runJSON(t, e, nil, "destroy", "-table", "users")
	runJSON(t, e, &tables, "tables")
	if len(tables) != 0 {
		t.Errorf("tables after destroy = %v", tables)
	}
	if err := run(t.Context(), e, []string{"destroy", "-table", "users"}); err == nil {
		t.Error("destroying a missing table should fail")
	}
}

func TestCommandQuery(t *testing.T) {
	e := newTestEnv(t)
	runJSON(t, e, nil, "insert", "-table", "t", `[{"n":1},{"n":2},{"n":3}]`)
	e.stdin = strings.NewReader("table: t\nwhere:\n  - {field: n, op: '>', value: 1}\norder_by: {key: n, order: desc}\n")
	rows := getRows(t, e, "query")
	if len(rows) != 2 || rows[0]["n"] != float64(3) {
		t.Errorf("query = %v", rows)
	}
}

func TestCommandExportImport(t *testing.T) {
	dir := t.TempDir()
	e := newTestEnv(t)
	runJSON(t, e, nil, "insert", "-table", "src", `[{"id":"1","n":1},{"id":"2","n":2}]`)
	for _, name := range []string{"dump.json", "dump.yaml", "dump.msgpack"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			runJSON(t, e, nil, "export", "-table", "src", "-o", path)
			if _, err := os.Stat(path); err != nil {
				t.Fatal(err)
			}
			var res map[string]int
			runJSON(t, e, &res, "import", "-table", "dst", "-i", path, "-replace")
			if res["imported"] != 2 || res["count"] != 2 {
				t.Errorf("import = %v", res)
			}
			rows := getRows(t, e, "get", "-table", "dst", "-where", `id="2"`)
			if len(rows) != 1 || rows[0]["n"] != float64(2) {
				t.Errorf("imported rows = %v", rows)
			}
		})
	}
}

func TestCommandSchema(t *testing.T) {
	var schema map[string]any
	runJSON(t, newTestEnv(t), &schema, "schema")
	if schema["title"] == nil {
		t.Errorf("schema = %v", schema)
	}
}

func TestCommandErrors(t *testing.T) {
	e := newTestEnv(t)
	tests := [][]string{
		{"nope"},
		{"get"},
		{"get", "-table", "t", "extra"},
		{"get", "-table", "t", "-where", "=1"},
		{"get", "-table", "t", "-where", "age~1"},
		{"get", "-table", "t", "-or", "a=1"},
		{"update", "-table", "t"},
		{"insert", "-table", "t", "not json"},
		{"export", "-table", "t", "-format", "xml"},
	}
	for _, args := range tests {
		if err := run(t.Context(), e, args); err == nil {
			t.Errorf("%v should fail", args)
		}
	}
}

func TestParseCondition(t *testing.T) {
	tests := []struct {
		in   string
		want models.Condition
	}{
		{"name=ann", models.Condition{Field: "name", Operator: models.OpEquals, Value: "ann"}},
		{"age>=18", models.Condition{Field: "age", Operator: models.OpGreaterEqual, Value: float64(18)}},
		{"age<>3", models.Condition{Field: "age", Operator: models.OpNotEqualsAlt, Value: float64(3)}},
		{"ok=true", models.Condition{Field: "ok", Operator: models.OpEquals, Value: true}},
		{"at=12:30", models.Condition{Field: "at", Operator: models.OpEquals, Value: "12:30"}},
		{"name:not like:bo", models.Condition{Field: "name", Operator: "not like", Value: "bo"}},
	}
	for _, tt := range tests {
		got, err := parseCondition(tt.in)
		if err != nil {
			t.Errorf("parseCondition(%q) failed: %v", tt.in, err)
			continue
		}
		if got.Field != tt.want.Field || got.Operator != tt.want.Operator || got.Value != tt.want.Value {
			t.Errorf("parseCondition(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
	c, err := parseCondition("age:between:[1,5]")
	if err != nil {
		t.Fatal(err)
	}
	if l, ok := c.Value.([]any); !ok || len(l) != 2 {
		t.Errorf("between value = %#v", c.Value)
	}
}

func recordNames(rows []models.Record) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i], _ = r["name"].(string)
	}
	return out
}
