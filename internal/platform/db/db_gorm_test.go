package db

import (
	"os"
	"path/filepath"
	"testing"
)

// TestOpenCacheDB_CreatesParentDir checks that a fresh deployment works
// without pre-creating the data directory.
func TestOpenCacheDB_CreatesParentDir(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "dir", "cache.db")

	gdb, err := OpenCacheDB(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("parent directory not created: %v", err)
	}

	// The connection must actually work.
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sqlDB.Ping(); err != nil {
		t.Errorf("ping failed: %v", err)
	}
}

func TestOpenCacheDB_PlainFileName(t *testing.T) {
	// Not parallel: changes the working directory.
	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { os.Chdir(cwd) })

	gdb, err := OpenCacheDB("cache.db")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sqlDB, err := gdb.DB(); err == nil {
		defer sqlDB.Close()
	}
}
