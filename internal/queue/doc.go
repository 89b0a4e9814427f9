// Package queue persists processing jobs in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages database connections, schema migrations, stats queries,
// stuck-job recovery, and retry transitions. Jobs capture the source path,
// ingest kind, cleaned title, final archive location, and upload counts so
// the CLI can report history without re-reading the filesystem.
//
// The database is treated as a run ledger rather than a long-term archive;
// `repack queue clear` drops it without ceremony.
package queue
