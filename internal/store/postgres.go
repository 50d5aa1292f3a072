package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"arp/api/internal/section"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// SaveSections replaces the section list of ownerID and its search rows in one
// transaction.
func (s *PostgresStore) SaveSections(ctx context.Context, ownerID string, sections []section.Section) error {
	if sections == nil {
		sections = []section.Section{}
	}
	payload, err := json.Marshal(sections)
	if err != nil {
		return fmt.Errorf("encode sections: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO section_documents (owner_id, payload, section_count)
		VALUES ($1, $2::jsonb, $3)
		ON CONFLICT (owner_id) DO UPDATE
		SET payload=EXCLUDED.payload, section_count=EXCLUDED.section_count, updated_at=NOW()
	`, ownerID, string(payload), len(sections)); err != nil {
		return fmt.Errorf("upsert section document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM section_search WHERE owner_id=$1`, ownerID); err != nil {
		return fmt.Errorf("clear section search rows: %w", err)
	}
	for _, row := range SearchRows(ownerID, sections) {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO section_search (owner_id, section_id, title, body, status, priority, tags, due_date, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (owner_id, section_id) DO NOTHING
		`, row.OwnerID, row.SectionID, row.Title, row.Body, row.Status, row.Priority, row.Tags, nullTime(row.DueDate), row.UpdatedAt); err != nil {
			return fmt.Errorf("insert section search row %s: %w", row.SectionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save tx: %w", err)
	}
	return nil
}

// LoadSectionsRaw returns the stored payload as written. Callers normalize it;
// rows written by older clients may not match the current section shape.
func (s *PostgresStore) LoadSectionsRaw(ctx context.Context, ownerID string) (json.RawMessage, error) {
	doc, err := s.LoadSectionDocument(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return doc.Payload, nil
}

func (s *PostgresStore) LoadSectionDocument(ctx context.Context, ownerID string) (SectionDocument, error) {
	var doc SectionDocument
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT owner_id, payload, section_count, created_at, updated_at
		FROM section_documents
		WHERE owner_id=$1
	`, ownerID).Scan(&doc.OwnerID, &payload, &doc.SectionCount, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SectionDocument{}, ErrNotFound
	}
	if err != nil {
		return SectionDocument{}, fmt.Errorf("load section document: %w", err)
	}
	doc.Payload = json.RawMessage(payload)
	return doc, nil
}

// ListOwners returns every owner with a stored section list.
func (s *PostgresStore) ListOwners(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT owner_id FROM section_documents ORDER BY owner_id`)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	defer rows.Close()

	owners := make([]string, 0)
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		owners = append(owners, owner)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate owners: %w", err)
	}
	return owners, nil
}

// ReminderSent reports whether the reminder for sectionID at date already went out.
func (s *PostgresStore) ReminderSent(ctx context.Context, ownerID, sectionID string, date time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM reminder_log WHERE owner_id=$1 AND section_id=$2 AND reminder_date=$3)
	`, ownerID, sectionID, date).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check reminder %s: %w", sectionID, err)
	}
	return exists, nil
}

func (s *PostgresStore) MarkReminderSent(ctx context.Context, entry ReminderEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reminder_log (owner_id, section_id, reminder_date, recipient)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_id, section_id, reminder_date) DO NOTHING
	`, entry.OwnerID, entry.SectionID, entry.ReminderDate, entry.Recipient)
	if err != nil {
		return fmt.Errorf("record reminder %s: %w", entry.SectionID, err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
