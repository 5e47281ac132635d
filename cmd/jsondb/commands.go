package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/maruel/jsondb/internal/export"
	"github.com/maruel/jsondb/internal/jsonldb"
	"github.com/maruel/jsondb/internal/models"
)

// env is what a command runs against.
type env struct {
	db     *jsonldb.DB
	stdin  io.Reader
	stdout io.Writer
}

type command struct {
	name string
	help string
	run  func(ctx context.Context, e *env, args []string) error
}

var commands = []command{
	{"tables", "List tables", cmdTables},
	{"get", "Print the records matching conditions", cmdGet},
	{"query", "Run a YAML or JSON query document", cmdQuery},
	{"insert", "Insert a JSON object or array of objects", cmdInsert},
	{"update", "Update fields of the records matching conditions", cmdUpdate},
	{"delete", "Delete the records matching conditions", cmdDelete},
	{"truncate", "Remove every record of a table", cmdTruncate},
	{"destroy", "Delete a table", cmdDestroy},
	{"export", "Dump a table as json, yaml or msgpack", cmdExport},
	{"import", "Load records from a json, yaml or msgpack dump", cmdImport},
	{"schema", "Print the JSON Schema of query documents", cmdSchema},
	{"watch", "Report tables created or removed by other processes", cmdWatch},
}

// run dispatches args[0] to its command.
func run(ctx context.Context, e *env, args []string) error {
	for _, c := range commands {
		if c.name == args[0] {
			return c.run(ctx, e, args[1:])
		}
	}
	return fmt.Errorf("unknown command %q", args[0])
}

func cmdTables(_ context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("tables", flag.ContinueOnError)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	return printJSON(e.stdout, e.db.Tables())
}

func cmdGet(_ context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	table := fs.String("table", "", "Table name")
	id := fs.String("id", "", "Only the record with this id")
	q := addQueryFlags(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	s, err := openTable(e.db, *table)
	if err != nil {
		return err
	}
	q.apply(s)
	if *id != "" {
		r, ok, err := s.GetByID(*id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no record with id %q in %s", *id, s.Name())
		}
		return printJSON(e.stdout, r)
	}
	rows, err := s.Get()
	if err != nil {
		return err
	}
	return printJSON(e.stdout, rows)
}

func cmdQuery(_ context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	file := fs.String("f", "-", "Query document; - reads stdin")
	table := fs.String("table", "", "Table name, overriding the document's")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	data, err := readInput(e.stdin, *file)
	if err != nil {
		return err
	}
	doc, err := models.ParseQueryDoc(data)
	if err != nil {
		return err
	}
	if *table == "" {
		*table = doc.Table
	}
	s, err := openTable(e.db, *table)
	if err != nil {
		return err
	}
	rows, err := s.Apply(doc).Get()
	if err != nil {
		return err
	}
	return printJSON(e.stdout, rows)
}

func cmdInsert(_ context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("insert", flag.ContinueOnError)
	table := fs.String("table", "", "Table name")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	var data []byte
	switch fs.NArg() {
	case 0:
		var err error
		if data, err = io.ReadAll(e.stdin); err != nil {
			return err
		}
	case 1:
		data = []byte(fs.Arg(0))
	default:
		return fmt.Errorf("unexpected arguments: %v", fs.Args()[1:])
	}
	records, err := parseRecords(data)
	if err != nil {
		return err
	}
	s, err := openTable(e.db, *table)
	if err != nil {
		return err
	}
	n, err := s.Insert(records...)
	if err != nil {
		return err
	}
	lastID, _, err := s.LastInsertID()
	if err != nil {
		return err
	}
	return printJSON(e.stdout, map[string]any{"count": n, "last_id": lastID})
}

func cmdUpdate(_ context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	table := fs.String("table", "", "Table name")
	set := fs.String("set", "", "JSON object of the fields to overwrite")
	q := addQueryFlags(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *set == "" {
		return errors.New("-set is required")
	}
	var partial models.Record
	if err := json.Unmarshal([]byte(*set), &partial); err != nil {
		return fmt.Errorf("invalid -set: %w", err)
	}
	s, err := openTable(e.db, *table)
	if err != nil {
		return err
	}
	q.apply(s)
	n, err := s.Update(partial)
	if err != nil {
		return err
	}
	return printJSON(e.stdout, map[string]int{"updated": n})
}

func cmdDelete(_ context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	table := fs.String("table", "", "Table name")
	q := addQueryFlags(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	s, err := openTable(e.db, *table)
	if err != nil {
		return err
	}
	q.apply(s)
	n, err := s.Delete()
	if err != nil {
		return err
	}
	return printJSON(e.stdout, map[string]int{"deleted": n})
}

func cmdTruncate(_ context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("truncate", flag.ContinueOnError)
	table := fs.String("table", "", "Table name")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	s, err := openTable(e.db, *table)
	if err != nil {
		return err
	}
	return s.Truncate()
}

func cmdDestroy(_ context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("destroy", flag.ContinueOnError)
	table := fs.String("table", "", "Table name")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	name := models.NormalizeTableName(*table)
	if name == "" {
		return errors.New("-table is required")
	}
	// Selecting a missing table would create it only to delete it again.
	if !slices.Contains(e.db.Tables(), name) {
		return fmt.Errorf("table %q does not exist", name)
	}
	s, err := openTable(e.db, name)
	if err != nil {
		return err
	}
	return s.Destroy()
}

func cmdExport(_ context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	table := fs.String("table", "", "Table name")
	format := fs.String("format", "", "json, yaml or msgpack (default: from -o, else json)")
	out := fs.String("o", "-", "Output file; - writes stdout")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	f, err := pickFormat(*format, *out)
	if err != nil {
		return err
	}
	s, err := openTable(e.db, *table)
	if err != nil {
		return err
	}
	rows, err := s.Get()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := export.Encode(&buf, f, rows); err != nil {
		return err
	}
	if *out == "-" {
		_, err = e.stdout.Write(buf.Bytes())
		return err
	}
	if err := os.WriteFile(*out, buf.Bytes(), 0o644); err != nil { //nolint:gosec // G306: exports are not secret
		return fmt.Errorf("failed to write %s: %w", *out, err)
	}
	slog.Info("Exported table", "table", s.Name(), "count", len(rows), "file", *out)
	return nil
}

func cmdImport(_ context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	table := fs.String("table", "", "Table name")
	format := fs.String("format", "", "json, yaml or msgpack (default: from -i, else json)")
	in := fs.String("i", "-", "Input file; - reads stdin")
	replace := fs.Bool("replace", false, "Replace the table content instead of appending")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	f, err := pickFormat(*format, *in)
	if err != nil {
		return err
	}
	data, err := readInput(e.stdin, *in)
	if err != nil {
		return err
	}
	records, err := export.Decode(bytes.NewReader(data), f)
	if err != nil {
		return err
	}
	s, err := openTable(e.db, *table)
	if err != nil {
		return err
	}
	var n int
	if *replace {
		n, err = s.Populate(records...)
	} else if len(records) > 0 {
		n, err = s.Insert(records...)
	}
	if err != nil {
		return err
	}
	return printJSON(e.stdout, map[string]int{"imported": len(records), "count": n})
}

func cmdSchema(_ context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("schema", flag.ContinueOnError)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	data, err := models.QueryDocSchema()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(e.stdout, "%s\n", data)
	return err
}

func cmdWatch(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	err := e.db.Watch(ctx, func(table string) {
		slog.InfoContext(ctx, "Tables changed", "table", table, "tables", e.db.Tables())
	})
	if err != nil {
		return fmt.Errorf("failed to watch tables: %w", err)
	}
	slog.InfoContext(ctx, "Watching tables", "tables", e.db.Tables())
	<-ctx.Done()
	return ctx.Err()
}

// queryFlags are the filter flags shared by get, update and delete.
type queryFlags struct {
	where   conditionsFlag
	orWhere conditionsFlag
	order   string
	limit   int
	offset  int
}

func addQueryFlags(fs *flag.FlagSet) *queryFlags {
	q := &queryFlags{}
	fs.Var(&q.where, "where", "Condition that must hold, e.g. age>=18 or name:like:an; repeatable")
	fs.Var(&q.orWhere, "or", "Condition of the OR group; repeatable")
	fs.StringVar(&q.order, "order", "", "Ordering as key[:asc|desc|rand]")
	fs.IntVar(&q.limit, "limit", -1, "Maximum number of records; -1 for all")
	fs.IntVar(&q.offset, "offset", 0, "Number of records to skip")
	return q
}

func (q *queryFlags) apply(s *jsonldb.Session) {
	if len(q.where) > 0 {
		s.WhereAll(q.where...)
	}
	if len(q.orWhere) > 0 {
		s.OrWhereAll(q.orWhere...)
	}
	if q.order != "" {
		key, order, _ := strings.Cut(q.order, ":")
		s.OrderBy(key, models.Order(order))
	}
	if q.limit >= 0 || q.offset > 0 {
		s.Limit(q.limit, q.offset)
	}
}

// conditionsFlag accumulates -where flags.
type conditionsFlag []models.Condition

func (c *conditionsFlag) String() string {
	parts := make([]string, len(*c))
	for i, cond := range *c {
		parts[i] = fmt.Sprintf("%s%s%v", cond.Field, cond.Operator, cond.Value)
	}
	return strings.Join(parts, ",")
}

func (c *conditionsFlag) Set(s string) error {
	cond, err := parseCondition(s)
	if err != nil {
		return err
	}
	*c = append(*c, cond)
	return nil
}

// symbolicOps is ordered so that two character operators are tried first.
var symbolicOps = []models.Operator{
	models.OpNotEquals, models.OpNotEqualsAlt, models.OpGreaterEqual, models.OpLessEqual,
	models.OpEquals, models.OpGreaterThan, models.OpLessThan,
}

// parseCondition parses "field<op>value" for symbolic operators and
// "field:op:value" for any operator. The value is decoded as JSON when
// possible and kept as text otherwise.
func parseCondition(s string) (models.Condition, error) {
	if field, rest, ok := strings.Cut(s, ":"); ok {
		if op, value, ok := strings.Cut(rest, ":"); ok {
			if _, known := models.ParseOperator(op); known && field != "" {
				return models.Condition{Field: field, Operator: models.Operator(op), Value: parseValue(value)}, nil
			}
		}
	}
	for i := range len(s) {
		for _, op := range symbolicOps {
			if strings.HasPrefix(s[i:], string(op)) {
				if i == 0 {
					return models.Condition{}, fmt.Errorf("invalid condition %q: no field", s)
				}
				return models.Condition{Field: s[:i], Operator: op, Value: parseValue(s[i+len(op):])}, nil
			}
		}
	}
	return models.Condition{}, fmt.Errorf("invalid condition %q; use field=value or field:op:value", s)
}

func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}

// parseRecords decodes a JSON object or array of objects.
func parseRecords(data []byte) ([]models.Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("no data to insert")
	}
	if data[0] == '[' {
		var records []models.Record
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("invalid records: %w", err)
		}
		return records, nil
	}
	var r models.Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("invalid record: %w", err)
	}
	return []models.Record{r}, nil
}

func openTable(db *jsonldb.DB, table string) (*jsonldb.Session, error) {
	if table == "" {
		return nil, errors.New("-table is required")
	}
	return db.Table(table)
}

func pickFormat(format, path string) (export.Format, error) {
	if format != "" {
		return export.ParseFormat(format)
	}
	if path == "-" {
		return export.JSON, nil
	}
	return export.FormatFromPath(path), nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.Name() != "insert" && fs.NArg() > 0 {
		return fmt.Errorf("unknown arguments: %v", fs.Args())
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
