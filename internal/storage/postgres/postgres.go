package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ButyrinIA/forum/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStorage хранит записи всех коллекций в одной таблице с JSONB
type PostgresStorage struct {
	pool *pgxpool.Pool
}

var _ storage.Storage = (*PostgresStorage)(nil)

func New(ctx context.Context, dsn string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS records (
			seq BIGSERIAL,
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			data JSONB NOT NULL,
			PRIMARY KEY (collection, id)
		);
		CREATE INDEX IF NOT EXISTS idx_records_collection_seq ON records(collection, seq);
	`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

func (s *PostgresStorage) List(ctx context.Context, collection string, filter map[string]string) ([]storage.Record, error) {
	query := `SELECT data FROM records WHERE collection = $1`
	args := []any{collection}

	// порядок ключей фиксирован, чтобы текст запроса не менялся
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		args = append(args, k, filter[k])
		fmt.Fprintf(&sb, " AND data->>($%d::text) = $%d", len(args)-1, len(args))
	}
	query += sb.String() + ` ORDER BY seq`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	defer rows.Close()

	result := []storage.Record{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		rec, err := decode(data)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (s *PostgresStorage) Get(ctx context.Context, collection, id string) (storage.Record, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `
		SELECT data FROM records
		WHERE collection = $1 AND id = $2`, collection, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decode(data)
}

func (s *PostgresStorage) Create(ctx context.Context, collection string, rec storage.Record) (storage.Record, error) {
	created := storage.Prepare(rec)
	data, err := json.Marshal(created)
	if err != nil {
		return nil, err
	}

	var stored []byte
	err = s.pool.QueryRow(ctx, `
		INSERT INTO records (collection, id, data)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data
		RETURNING data`,
		collection, storage.RecordID(created), string(data)).Scan(&stored)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s record: %w", collection, err)
	}
	return decode(stored)
}

func (s *PostgresStorage) Patch(ctx context.Context, collection, id string, patch storage.Record) (storage.Record, error) {
	clean := storage.Merge(storage.Record{}, patch)
	data, err := json.Marshal(clean)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, `
		UPDATE records SET data = data || $3::jsonb
		WHERE collection = $1 AND id = $2
		RETURNING data`, collection, id, string(data))
}

func (s *PostgresStorage) Replace(ctx context.Context, collection, id string, rec storage.Record) (storage.Record, error) {
	clean := storage.Merge(storage.Record{}, rec)
	data, err := json.Marshal(clean)
	if err != nil {
		return nil, err
	}
	// id сохраняется из существующей записи
	return s.update(ctx, `
		UPDATE records SET data = $3::jsonb || jsonb_build_object('id', data->'id')
		WHERE collection = $1 AND id = $2
		RETURNING data`, collection, id, string(data))
}

func (s *PostgresStorage) update(ctx context.Context, query, collection, id, data string) (storage.Record, error) {
	var stored []byte
	err := s.pool.QueryRow(ctx, query, collection, id, data).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update %s record: %w", collection, err)
	}
	return decode(stored)
}

func (s *PostgresStorage) Delete(ctx context.Context, collection, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM records WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s record: %w", collection, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}

func decode(data []byte) (storage.Record, error) {
	var rec storage.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return rec, nil
}
