package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/jayanthbabu123/water-delivery-app-sub000"
)

// EntryModel is one row of the key value table.
type EntryModel struct {
	bun.BaseModel `bun:"table:kv_entries,alias:kv"`

	Key       string    `bun:"entry_key,pk"`
	Value     string    `bun:"entry_value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// BunStore is a durable auth.KeyValueStore backed by any bun database. Every
// Multi* call runs in one transaction, so a batch is never half applied.
type BunStore struct {
	db *bun.DB
}

var _ auth.KeyValueStore = (*BunStore)(nil)

// NewBunStore creates a store over db. Call Migrate before first use.
func NewBunStore(db *bun.DB) *BunStore {
	return &BunStore{db: db}
}

// OpenSQLite opens (or creates) a SQLite database at dsn, for example
// "file:session.db?cache=shared" or "file::memory:?cache=shared".
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open sqlite database")
	}
	// sqlite serializes writers, a single connection avoids SQLITE_BUSY
	sqldb.SetMaxOpenConns(1)
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// Migrate creates the key value table.
func (s *BunStore) Migrate(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*EntryModel)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create kv table")
	}
	return nil
}

// Get implements auth.KeyValueStore.
func (s *BunStore) Get(ctx context.Context, key string) (string, bool, error) {
	var model EntryModel
	err := s.db.NewSelect().
		Model(&model).
		Where("?TableAlias.entry_key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to get key").
			WithMetadata(map[string]any{"key": key})
	}
	return model.Value, true, nil
}

// Set implements auth.KeyValueStore.
func (s *BunStore) Set(ctx context.Context, key, value string) error {
	return s.MultiSet(ctx, map[string]string{key: value})
}

// MultiGet implements auth.KeyValueStore. Missing keys are absent from the
// result.
func (s *BunStore) MultiGet(ctx context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	var models []EntryModel
	err := s.db.NewSelect().
		Model(&models).
		Where("?TableAlias.entry_key IN (?)", bun.In(keys)).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to get keys")
	}

	for _, m := range models {
		out[m.Key] = m.Value
	}
	return out, nil
}

// MultiSet implements auth.KeyValueStore.
func (s *BunStore) MultiSet(ctx context.Context, entries map[string]string) error {
	if len(entries) == 0 {
		return nil
	}

	now := time.Now().UTC()
	models := make([]EntryModel, 0, len(entries))
	for k, v := range entries {
		models = append(models, EntryModel{Key: k, Value: v, UpdatedAt: now})
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(&models).
			On("CONFLICT (entry_key) DO UPDATE").
			Set("entry_value = EXCLUDED.entry_value").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to set keys")
		}
		return nil
	})
}

// MultiRemove implements auth.KeyValueStore. Absent keys are ignored.
func (s *BunStore) MultiRemove(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().
			Model((*EntryModel)(nil)).
			Where("entry_key IN (?)", bun.In(keys)).
			Exec(ctx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to remove keys")
		}
		return nil
	})
}
