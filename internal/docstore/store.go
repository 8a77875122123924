package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("document not found")
	// ErrConflict is returned when a write violates a uniqueness rule
	// declared on the collection (unique index over document fields).
	ErrConflict = errors.New("document conflicts with an existing document")
)

// Doc is one stored document. Data is the raw JSON payload; the store
// never interprets it beyond the indexes declared in the schema.
type Doc struct {
	ID        uuid.UUID
	Data      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is a durable key-value document store over Postgres: JSONB
// documents grouped into named collections, ids minted on insert, and a
// NOTIFY-based change feed per collection.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const notifyChannel = "docstore_changes"

// Migrate creates the documents table, the change-feed trigger and the
// uniqueness rule for appointment slots. Safe to run repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			collection text NOT NULL,
			id uuid PRIMARY KEY,
			data jsonb NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now(),
			updated_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS documents_collection_idx ON documents (collection)`,
		// At most one non-cancelled appointment per (date, time, office).
		// This is the authoritative guard against two writers observing a
		// slot as free at the same moment.
		`CREATE UNIQUE INDEX IF NOT EXISTS appointments_slot_idx
			ON documents ((data->>'date'), (data->>'time'), (data->>'office'))
			WHERE collection = 'appointments' AND data->>'status' <> 'cancelled'`,
		`CREATE OR REPLACE FUNCTION notify_document_change() RETURNS trigger AS $$
		BEGIN
			PERFORM pg_notify('` + notifyChannel + `', COALESCE(NEW.collection, OLD.collection));
			RETURN NULL;
		END;
		$$ LANGUAGE plpgsql`,
		`DROP TRIGGER IF EXISTS documents_notify ON documents`,
		`CREATE TRIGGER documents_notify
			AFTER INSERT OR UPDATE OR DELETE ON documents
			FOR EACH ROW EXECUTE FUNCTION notify_document_change()`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate docstore: %w", err)
		}
	}
	return nil
}

func scanDoc(row pgx.Row) (*Doc, error) {
	var d Doc
	err := row.Scan(&d.ID, &d.Data, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// Put inserts a new document and returns the id the store assigned to it.
func (s *Store) Put(ctx context.Context, collection string, data []byte) (*Doc, error) {
	id := uuid.New()

	row := s.pool.QueryRow(ctx, `
		INSERT INTO documents (collection, id, data, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		RETURNING id, data, created_at, updated_at
	`, collection, id, data)

	doc, err := scanDoc(row)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return doc, nil
}

func (s *Store) Get(ctx context.Context, collection string, id uuid.UUID) (*Doc, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, data, created_at, updated_at
		FROM documents
		WHERE collection = $1 AND id = $2
	`, collection, id)
	return scanDoc(row)
}

func (s *Store) List(ctx context.Context, collection string) ([]Doc, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, data, created_at, updated_at
		FROM documents
		WHERE collection = $1
		ORDER BY created_at
	`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doc
	for rows.Next() {
		d, err := scanDoc(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Update overwrites the document payload in place.
func (s *Store) Update(ctx context.Context, collection string, id uuid.UUID, data []byte) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE documents
		SET data = $3,
		    updated_at = now()
		WHERE collection = $1 AND id = $2
	`, collection, id, data)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection string, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM documents
		WHERE collection = $1 AND id = $2
	`, collection, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	return err
}
