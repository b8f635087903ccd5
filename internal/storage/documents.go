package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const documentColumns = `id, path, content, modified_time, collection, vector_id, created_at, updated_at`

// UpsertDocument stores d keyed by path. An existing row for the same path
// keeps its id; its content and modification time are replaced and its
// vector assignment is cleared so it gets re-embedded. The stored id is
// returned.
func (s *Store) UpsertDocument(ctx context.Context, d Document) (string, error) {
	now := formatTime(time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, '', '', ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			content = excluded.content,
			modified_time = excluded.modified_time,
			collection = '',
			vector_id = '',
			updated_at = excluded.updated_at`,
		d.ID, d.Path, d.Content, formatTime(d.ModifiedTime), now, now,
	)
	if err != nil {
		return "", fmt.Errorf("upserting document %s: %w", d.Path, err)
	}

	var id string
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM documents WHERE path = ?`, d.Path).Scan(&id); err != nil {
		return "", fmt.Errorf("reading document id for %s: %w", d.Path, err)
	}
	return id, nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	return d, err
}

func (s *Store) GetDocumentByPath(ctx context.Context, path string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE path = ?`, path)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	return d, err
}

// ListDocuments returns up to limit documents, most recently updated first.
func (s *Store) ListDocuments(ctx context.Context, limit int) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents ORDER BY updated_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

// MarkDocumentEmbedded records that the document now lives in collection
// under vectorID.
func (s *Store) MarkDocumentEmbedded(ctx context.Context, id, collection, vectorID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET collection = ?, vector_id = ?, updated_at = ? WHERE id = ?`,
		collection, vectorID, formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDocument(sc scanner) (Document, error) {
	var d Document
	var modified, createdAt, updatedAt string
	err := sc.Scan(&d.ID, &d.Path, &d.Content, &modified, &d.Collection, &d.VectorID, &createdAt, &updatedAt)
	if err != nil {
		return Document{}, err
	}
	if d.ModifiedTime, err = parseTime("modified_time", modified); err != nil {
		return Document{}, err
	}
	if d.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return Document{}, err
	}
	if d.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return Document{}, err
	}
	return d, nil
}
