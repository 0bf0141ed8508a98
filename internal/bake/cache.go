package bake

import (
	"database/sql"
	"fmt"

	"upp/internal/sema"
	"upp/internal/types"
)

// cache is the sqlite-backed persistent store behind Runner: one row
// per bake block, keyed by cacheKey, holding the result's type handle
// and raw bytes. modernc.org/sqlite is a pure-Go driver, so the cache
// works without cgo.
type cache struct {
	db *sql.DB
}

func newCache(db *sql.DB) (*cache, error) {
	c := &cache{db: db}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bake_cache (
			key TEXT PRIMARY KEY,
			type_handle INTEGER NOT NULL,
			value BLOB NOT NULL
		)`); err != nil {
		return nil, fmt.Errorf("bake: creating cache table: %w", err)
	}
	return c, nil
}

func (c *cache) lookup(key string, reg *types.Registry) (*sema.ConstValue, bool, error) {
	var handle uint64
	var value []byte
	err := c.db.QueryRow(`SELECT type_handle, value FROM bake_cache WHERE key = ?`, key).Scan(&handle, &value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	t := reg.ByHandle(handle)
	if t == nil {
		// The handle was minted by an earlier compilation of a
		// differently-ordered registry; treat as a miss rather than
		// handing back a value of the wrong type.
		return nil, false, nil
	}
	return &sema.ConstValue{Type: t, Bytes: value}, true, nil
}

func (c *cache) store(key string, typeHandle uint64, value []byte) error {
	_, err := c.db.Exec(`
		INSERT INTO bake_cache (key, type_handle, value) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET type_handle = excluded.type_handle, value = excluded.value`,
		key, typeHandle, value)
	return err
}
