package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher over the section_search table.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; without Postgres nothing is served anyway.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search ranks sections with plainto_tsquery and ts_rank and builds snippets
// with ts_headline.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	const tsQuery = "plainto_tsquery('english', $1)"
	where := []string{"s.fts @@ " + tsQuery}
	args := []any{q.Text}
	if q.OwnerID != "" {
		args = append(args, q.OwnerID)
		where = append(where, fmt.Sprintf("s.owner_id = $%d", len(args)))
	}
	if q.Status != "" {
		args = append(args, q.Status)
		where = append(where, fmt.Sprintf("s.status = $%d", len(args)))
	}
	whereSQL := strings.Join(where, " AND ")

	var total int
	if err := p.db.QueryRowContext(ctx, "SELECT count(*) FROM section_search s WHERE "+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT s.owner_id, s.section_id, s.title,
			ts_headline('english', coalesce(s.body, ''), %s, 'MaxFragments=1,MaxWords=30,StartSel=<mark>,StopSel=</mark>') AS snippet,
			s.status, s.priority
		FROM section_search s
		WHERE %s
		ORDER BY ts_rank(s.fts, %s) DESC, s.updated_at DESC NULLS LAST
		LIMIT %d OFFSET %d`, tsQuery, whereSQL, tsQuery, limit, offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.OwnerID, &r.SectionID, &r.Title, &r.Snippet, &r.Status, &r.Priority); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.ID = RecordID(r.OwnerID, r.SectionID)
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords returns every indexed section for a full reindex.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]SectionRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT owner_id, section_id, title, body, tags, status, priority,
			coalesce(to_char(due_date AT TIME ZONE 'UTC', 'YYYY-MM-DD'), '')
		FROM section_search
	`)
	if err != nil {
		return nil, fmt.Errorf("load sections: %w", err)
	}
	defer rows.Close()

	records := make([]SectionRecord, 0)
	for rows.Next() {
		var r SectionRecord
		if err := rows.Scan(&r.OwnerID, &r.SectionID, &r.Title, &r.Body, &r.Tags, &r.Status, &r.Priority, &r.DueDate); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		r.ID = RecordID(r.OwnerID, r.SectionID)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sections: %w", err)
	}
	return records, nil
}
