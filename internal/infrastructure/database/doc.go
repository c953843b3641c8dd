// Package database provides the SQLite store behind showctl's action
// history and operator audit log.
//
// Migrations are read from an fs.FS (normally the embedded migrations
// package) and applied one transaction each. They are additive-only: new
// columns must be NULLABLE or carry a DEFAULT.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if _, err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
