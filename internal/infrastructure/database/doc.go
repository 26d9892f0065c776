// Package database opens the bridge's SQLite store and brings its schema up
// to date.
//
// The store holds the device registry, state history and the cloud
// credential, so the file is created owner-only (0600). WAL mode keeps API
// reads responsive while a poll reconcile is writing, and the connection
// pool is pinned to a single connection to match SQLite's one-writer model.
//
// Migrations are embedded .up.sql files applied in filename order and
// recorded in schema_migrations. There is no programmatic rollback; new
// columns are added nullable or with defaults so older files stay readable.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
