// Package database provides SQLite connectivity for the discovery service.
//
// It owns the connection (WAL mode, busy timeout, single writer) and the
// schema migrations that back the device registry. Migration files are
// supplied as an fs.FS, normally the embedded set from the top-level
// migrations package.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql. Migrations are additive: new columns are
// nullable or carry a default.
package database
