package jsonldb

import (
	"errors"
	"io/fs"
	"slices"
	"time"

	dberrors "github.com/maruel/jsondb/internal/errors"
	"github.com/maruel/jsondb/internal/models"
)

// Session is a query builder bound to one table.
//
// Builder methods (Where, OrWhere, OrderBy, Limit, ...) only record the
// pending query and return the Session for chaining. The first builder error
// is kept and returned by the next terminal call; see Err.
//
// Records returned by a Session are shallow copies; modifying them does not
// change the table.
type Session struct {
	db    *DB
	query models.QuerySpec
	err   error

	// tbl is nil until the table is first loaded.
	tbl *table
	// view is the result of the last fetch, nil when none. Its records are
	// the instances held by tbl.rows.
	view []models.Record
}

// Table rebinds the session to the table name, creating an empty table when
// none exists. The pending query, any recorded builder error and the cached
// RecordSet are dropped.
func (s *Session) Table(name string) (*Session, error) {
	if s.db == nil {
		return s, dberrors.NoTableSelected("Table")
	}
	table := models.NormalizeTableName(name)
	if table == "" {
		return s, dberrors.InvalidArgument("Table", "no table given")
	}
	s.query.Reset(table)
	s.err = nil
	s.tbl = nil
	s.view = nil
	if err := s.db.ensureTable(table); err != nil {
		return s, err
	}
	return s, nil
}

// Name returns the normalized name of the selected table.
func (s *Session) Name() string {
	return s.query.Table
}

// Err returns the first error recorded by a builder call.
func (s *Session) Err() error {
	return s.err
}

// Query returns a copy of the pending query.
func (s *Session) Query() models.QuerySpec {
	q := s.query
	q.Where = slices.Clone(q.Where)
	q.OrWhere = slices.Clone(q.OrWhere)
	return q
}

// Where adds a condition that must hold.
func (s *Session) Where(field string, op models.Operator, value any) *Session {
	return s.WhereAll(models.Condition{Field: field, Operator: op, Value: value})
}

// WhereAll adds several conditions that must all hold.
func (s *Session) WhereAll(conds ...models.Condition) *Session {
	s.addConditions("Where", &s.query.Where, conds)
	return s
}

// OrWhere adds a condition to the OR group. The OR group is evaluated over
// the whole table and its result is unioned with the Where result. It can
// only follow Where.
func (s *Session) OrWhere(field string, op models.Operator, value any) *Session {
	return s.OrWhereAll(models.Condition{Field: field, Operator: op, Value: value})
}

// OrWhereAll adds several conditions to the OR group; a record joins the
// result when it satisfies all of them.
func (s *Session) OrWhereAll(conds ...models.Condition) *Session {
	if !s.builderOK("OrWhere") {
		return s
	}
	if len(s.query.Where) == 0 {
		s.err = dberrors.InvalidState("OrWhere", "can only be used after Where")
		return s
	}
	s.addConditions("OrWhere", &s.query.OrWhere, conds)
	return s
}

// OrderBy sorts the result by key. An empty order is ascending. Records
// without key are dropped from the result.
func (s *Session) OrderBy(key string, order models.Order) *Session {
	if !s.builderOK("OrderBy") {
		return s
	}
	if key == "" {
		s.err = dberrors.InvalidArgument("OrderBy", "no key given")
		return s
	}
	switch order {
	case "":
		order = models.OrderAsc
	case models.OrderAsc, models.OrderDesc, models.OrderRand:
	default:
		s.err = dberrors.InvalidArgument("OrderBy", "order must be asc, desc or rand").WithDetail("order", string(order))
		return s
	}
	s.query.OrderBy = &models.OrderBy{Key: key, Order: order}
	return s
}

// Limit keeps count records starting at offset. A negative count keeps
// everything from offset.
func (s *Session) Limit(count, offset int) *Session {
	if !s.builderOK("Limit") {
		return s
	}
	if offset < 0 {
		s.err = dberrors.InvalidArgument("Limit", "offset must not be negative")
		return s
	}
	s.query.Limit = &models.Limit{Count: count, Offset: offset}
	return s
}

// Offset skips offset records and keeps the rest.
func (s *Session) Offset(offset int) *Session {
	return s.Limit(-1, offset)
}

// Apply replays a query document onto the session. The document's table is
// ignored; select it with Table first.
func (s *Session) Apply(doc *models.QueryDoc) *Session {
	if len(doc.Where) > 0 {
		s.WhereAll(doc.Where...)
	}
	if len(doc.OrWhere) > 0 {
		s.OrWhereAll(doc.OrWhere...)
	}
	if doc.OrderBy != nil {
		s.OrderBy(doc.OrderBy.Key, doc.OrderBy.Order)
	}
	if doc.Limit != nil {
		l := doc.Limit.ToLimit()
		s.Limit(l.Count, l.Offset)
	}
	return s
}

// Get runs the pending query and returns the matching records.
//
// Each call evaluates the query against the whole table; the OR group is
// consumed by the call. The records returned are deep copies.
func (s *Session) Get() ([]models.Record, error) {
	if err := s.check("Get"); err != nil {
		return nil, err
	}
	start := time.Now()
	view, err := s.fetch(!s.query.SkipConditions)
	if err != nil {
		return nil, err
	}
	s.db.logger.Debug("Get", "table", s.query.Table, "count", len(view), "dur", time.Since(start))
	return cloneRecords(view), nil
}

// GetByID returns the first record whose id is id.
func (s *Session) GetByID(id string) (models.Record, bool, error) {
	if id == "" {
		return nil, false, dberrors.InvalidArgument("GetByID", "no id given")
	}
	return s.GetSingle(models.IDField, id)
}

// GetSingle returns the first record of the current view whose field is
// exactly value. When no view exists yet the pending query is run first.
// Finding nothing is not an error.
func (s *Session) GetSingle(field string, value any) (models.Record, bool, error) {
	if err := s.check("GetSingle"); err != nil {
		return nil, false, err
	}
	if field == "" {
		return nil, false, dberrors.InvalidArgument("GetSingle", "no field given")
	}
	if value == nil || value == "" {
		return nil, false, dberrors.InvalidArgument("GetSingle", "no value given")
	}
	if s.view == nil {
		if _, err := s.fetch(!s.query.SkipConditions); err != nil {
			return nil, false, err
		}
	}
	for _, r := range s.view {
		if v, ok := r[field]; ok && strictEqual(v, value) {
			return r.Clone(), true, nil
		}
	}
	s.db.logger.Debug("GetSingle: no match", "table", s.query.Table, "field", field)
	return nil, false, nil
}

// Insert appends records, giving an id to every record lacking one, and
// persists the table. It returns the new record count.
//
// The records are deep copied; the caller's values are not modified or shared.
func (s *Session) Insert(records ...models.Record) (int, error) {
	if err := s.check("Insert"); err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, dberrors.InvalidArgument("Insert", "no data to insert")
	}
	tbl, err := s.load()
	if err != nil {
		return 0, err
	}
	start := time.Now()
	added := make([]models.Record, 0, len(records))
	for i, r := range records {
		if r == nil {
			return 0, dberrors.InvalidArgument("Insert", "nil record").WithDetail("index", i)
		}
		r = r.Clone()
		if id, ok := r[models.IDField]; !ok || id == nil || id == "" {
			newID, err := s.db.newID()
			if err != nil {
				return 0, err
			}
			r[models.IDField] = newID
		}
		added = append(added, r)
	}
	rows := append(slices.Clip(tbl.rows), added...)
	if err := tbl.replace(rows); err != nil {
		return 0, err
	}
	s.view = nil
	s.db.logger.Debug("Insert", "table", s.query.Table, "count", len(added), "dur", time.Since(start))
	return len(tbl.rows), nil
}

// Populate replaces the whole table content with records.
func (s *Session) Populate(records ...models.Record) (int, error) {
	if err := s.Truncate(); err != nil {
		return 0, err
	}
	return s.Insert(records...)
}

// Update runs the pending query, then overwrites in every matching record
// the fields that exist in both the record and partial. Fields are never
// added. It returns the number of records touched.
//
// Records outside the query result are persisted unchanged.
func (s *Session) Update(partial models.Record) (int, error) {
	if err := s.check("Update"); err != nil {
		return 0, err
	}
	start := time.Now()
	view, err := s.fetch(!s.query.SkipConditions)
	if err != nil {
		return 0, err
	}
	type change struct {
		rec models.Record
		key string
		old any
	}
	var changes []change
	for _, r := range view {
		for k, v := range partial {
			if old, ok := r[k]; ok {
				changes = append(changes, change{r, k, old})
				r[k] = models.CloneValue(v)
			}
		}
	}
	if err := s.tbl.replace(s.tbl.rows); err != nil {
		for i := len(changes) - 1; i >= 0; i-- {
			changes[i].rec[changes[i].key] = changes[i].old
		}
		return 0, err
	}
	s.db.logger.Debug("Update", "table", s.query.Table, "count", len(view), "dur", time.Since(start))
	return len(view), nil
}

// Delete removes the records matched by the pending query and persists the
// rest in their original order. It returns the number of records removed.
func (s *Session) Delete() (int, error) {
	if err := s.check("Delete"); err != nil {
		return 0, err
	}
	start := time.Now()
	all, err := s.fetch(false)
	if err != nil {
		return 0, err
	}
	filtered, err := s.fetch(true)
	if err != nil {
		return 0, err
	}
	remaining := difference(all, filtered)
	if err := s.tbl.replace(remaining); err != nil {
		return 0, err
	}
	s.view = nil
	removed := len(all) - len(remaining)
	s.db.logger.Debug("Delete", "table", s.query.Table, "count", removed, "dur", time.Since(start))
	return removed, nil
}

// Truncate removes every record and persists the empty table.
func (s *Session) Truncate() error {
	if err := s.check("Truncate"); err != nil {
		return err
	}
	tbl, err := s.load()
	if err != nil {
		return err
	}
	if err := tbl.replace([]models.Record{}); err != nil {
		return err
	}
	s.view = nil
	s.db.logger.Debug("Truncate", "table", s.query.Table)
	return nil
}

// Destroy deletes the table's blob. The session stays bound to the name; any
// further call fails with TableNotFound until Table is called again.
func (s *Session) Destroy() error {
	if err := s.check("Destroy"); err != nil {
		return err
	}
	blob, ok := s.db.registry.Lookup(s.query.Table)
	if !ok {
		return dberrors.TableNotFound(s.query.Table)
	}
	if err := s.db.store.Delete(blob); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.db.registry.Remove(s.query.Table)
			return dberrors.TableNotFound(s.query.Table)
		}
		return dberrors.StorageError("failed to destroy table "+s.query.Table, err)
	}
	s.db.registry.Remove(s.query.Table)
	s.tbl = nil
	s.view = nil
	s.db.logger.Debug("Destroy", "table", s.query.Table)
	return nil
}

// LastItem removes the last record of the current view (or of the table when
// no query ran) from memory and returns it. The removal reaches storage with
// the next mutating call. Nothing is loaded: before the table is loaded it
// reports absence.
func (s *Session) LastItem() (models.Record, bool, error) {
	if err := s.check("LastItem"); err != nil {
		return nil, false, err
	}
	working := s.working()
	if len(working) == 0 {
		return nil, false, nil
	}
	last := working[len(working)-1]
	if s.view != nil {
		s.view = s.view[:len(s.view)-1]
	}
	s.tbl.rows = difference(s.tbl.rows, []models.Record{last})
	return last.Clone(), true, nil
}

// LastInsertID returns the id of the last record of the current view (or of
// the table when no query ran) without removing it.
func (s *Session) LastInsertID() (string, bool, error) {
	if err := s.check("LastInsertID"); err != nil {
		return "", false, err
	}
	working := s.working()
	if len(working) == 0 {
		return "", false, nil
	}
	id := working[len(working)-1].ID()
	return id, id != "", nil
}

// check is the common prologue of terminal calls.
func (s *Session) check(op string) error {
	if s.db == nil || s.query.Table == "" {
		return dberrors.NoTableSelected(op)
	}
	return s.err
}

// builderOK reports whether a builder call may proceed, recording
// NoTableSelected when it may not.
func (s *Session) builderOK(op string) bool {
	if s.err != nil {
		return false
	}
	if s.db == nil || s.query.Table == "" {
		s.err = dberrors.NoTableSelected(op)
		return false
	}
	return true
}

func (s *Session) addConditions(op string, dst *[]models.Condition, conds []models.Condition) {
	if !s.builderOK(op) {
		return
	}
	if len(conds) == 0 {
		s.err = dberrors.InvalidArgument(op, "no conditions given")
		return
	}
	valid := make([]models.Condition, 0, len(conds))
	for _, c := range conds {
		c, err := validateCondition(op, c)
		if err != nil {
			s.err = err
			return
		}
		valid = append(valid, c)
	}
	*dst = append(*dst, valid...)
}

// load returns the table, reading it from storage on first use.
func (s *Session) load() (*table, error) {
	blob, ok := s.db.registry.Lookup(s.query.Table)
	if !ok {
		return nil, dberrors.TableNotFound(s.query.Table)
	}
	if s.tbl == nil {
		tbl, err := loadTable(s.db.store, s.query.Table, blob)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// Removed behind our back.
				s.db.registry.Remove(s.query.Table)
				return nil, dberrors.TableNotFound(s.query.Table)
			}
			return nil, err
		}
		s.tbl = tbl
		s.db.logger.Debug("Loaded table", "table", s.query.Table, "count", len(tbl.rows))
	}
	return s.tbl, nil
}

// fetch computes the current view. Without conditions the view is the whole
// table.
func (s *Session) fetch(applyConditions bool) ([]models.Record, error) {
	tbl, err := s.load()
	if err != nil {
		return nil, err
	}
	if applyConditions {
		s.view = s.db.runPlan(tbl.rows, &s.query)
	} else {
		s.view = slices.Clone(tbl.rows)
	}
	return s.view, nil
}

// working is the set LastItem and LastInsertID read from.
func (s *Session) working() []models.Record {
	if s.view != nil {
		return s.view
	}
	if s.tbl != nil {
		return s.tbl.rows
	}
	return nil
}

func cloneRecords(rows []models.Record) []models.Record {
	out := make([]models.Record, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}
