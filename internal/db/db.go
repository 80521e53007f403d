// Package db archives EPS telegrams and linearity history in sqlite so a
// session can be exported or restored after a restart.
package db

import (
	"compress/gzip"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// ErrNoSession is returned when no matching session is recorded.
var ErrNoSession = errors.New("no recorded session")

type DB struct {
	*sql.DB
}

// MigrationsFS returns the embedded migration files.
func MigrationsFS() (fs.FS, error) {
	return fs.Sub(migrationFiles, "migrations")
}

// NewDB opens the database at path and migrates it to the latest schema.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}

	migrations, err := MigrationsFS()
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := db.MigrateUp(migrations); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenDB opens the database and applies connection pragmas without touching
// the schema.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := applyPragmas(sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return &DB{sqlDB}, nil
}

func applyPragmas(db *sql.DB) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	} {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return nil
}

// AttachAdminRoutes mounts the SQL console and the backup download under
// /debug/.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	// create a tailSQL instance and point it to our DB
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://eps_data.db", db.DB, &tailsql.DBOptions{
		Label: "EPS DB",
	})

	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(db.serveBackup))
}

func (db *DB) serveBackup(w http.ResponseWriter, r *http.Request) {
	name := fmt.Sprintf("eps-backup-%d.db", time.Now().UnixNano())
	backupPath := filepath.Join(os.TempDir(), name)
	if _, err := db.Exec("VACUUM INTO ?", backupPath); err != nil {
		http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := os.Remove(backupPath); err != nil {
			log.Printf("Failed to remove backup file: %v", err)
		}
	}()

	backupFile, err := os.Open(backupPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
		return
	}
	defer backupFile.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", name))
	w.Header().Set("Content-Type", "application/gzip")

	gzipWriter := gzip.NewWriter(w)
	defer gzipWriter.Close()
	if _, err := io.Copy(gzipWriter, backupFile); err != nil {
		log.Printf("Failed to stream backup: %v", err)
	}
}
