package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zjrosen/skywidgets/internal/docs"
)

// DocumentRepository stores documents as JSON envelopes, one row each.
type DocumentRepository struct {
	db *DB
}

// Append inserts doc for runUID.
func (r *DocumentRepository) Append(ctx context.Context, runUID string, doc docs.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s document: %w", doc.Name, err)
	}
	_, err = r.db.conn.ExecContext(ctx,
		`INSERT INTO documents (run_uid, name, body, created_at) VALUES (?, ?, ?, ?)`,
		runUID, string(doc.Name), string(body), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// Documents returns the documents of runUID in insertion order, nil if none.
func (r *DocumentRepository) Documents(ctx context.Context, runUID string) ([]docs.Document, error) {
	rows, err := r.db.conn.QueryContext(ctx,
		`SELECT body FROM documents WHERE run_uid = ? ORDER BY id`, runUID)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var out []docs.Document
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		var doc docs.Document
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// RunUIDs lists every run with stored documents, oldest first.
func (r *DocumentRepository) RunUIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.conn.QueryContext(ctx,
		`SELECT run_uid FROM documents GROUP BY run_uid ORDER BY MIN(id)`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var uids []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		uids = append(uids, uid)
	}
	return uids, rows.Err()
}

// Close closes the database.
func (r *DocumentRepository) Close() error {
	return r.db.Close()
}
