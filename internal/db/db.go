package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	stateDir = ".shiptrack"
	fileName = "shiptrack.db"
)

type Config struct {
	Workspace string
}

// Dir returns the state directory of a workspace.
func Dir(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, stateDir)
}

// Path returns the db path for the workspace.
func Path(workspace string) string {
	return filepath.Join(Dir(workspace), fileName)
}

// Open creates the state directory when missing and opens the workspace
// database with foreign keys on.
func Open(cfg Config) (*sql.DB, error) {
	if err := os.MkdirAll(Dir(cfg.Workspace), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", Path(cfg.Workspace))
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// single writer; callers must not query outside an open tx
	conn.SetMaxOpenConns(1)
	return conn, nil
}

// Remove deletes the workspace database file.
func Remove(workspace string) error {
	err := os.Remove(Path(workspace))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
