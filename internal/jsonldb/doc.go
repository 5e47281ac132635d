// Package jsonldb provides an embedded document store where each table is a
// JSON file holding an array of records.
//
// # Overview
//
// [Open] binds a [DB] to a [storage.FileStore]. [DB.Table] returns a
// [Session], a chainable query builder bound to one table:
//
//	s, err := db.Table("users")
//	recs, err := s.Where("name", models.OpEquals, "ann").OrderBy("age", models.OrderDesc).Limit(10, 0).Get()
//
// Builder calls only record the pending [models.QuerySpec]; terminal calls
// (Get, Update, Delete, ...) load the table on first use and run the plan:
// AND conditions, then the OR group unioned over the whole table, then
// ordering, then pagination.
//
// # Persistence
//
// A Session loads the table once and keeps it in memory until another table
// is selected. Every mutating call writes the whole table back as a single
// JSON array; on failure the in-memory state is left as it was before the
// call.
//
// # Concurrency
//
// A Session is not safe for concurrent use. Several sessions on the same
// table each hold their own copy and the last writer wins.
package jsonldb
