package analysis

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// sqliteTime is fixed-width so text ordering matches time ordering.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

type analysisRepoSQLite struct{ db *sql.DB }

// NewRepoSQLite returns a Repository over an SQLite handle opened with
// db.OpenSQLite.
func NewRepoSQLite(db *sql.DB) Repository {
	return &analysisRepoSQLite{db: db}
}

func (r *analysisRepoSQLite) Create(ctx context.Context, rep *Report) error {
	doc, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	conds, err := json.Marshal(nonNil(rep.Conditions))
	if err != nil {
		return fmt.Errorf("encode conditions: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO analysis (id, filename, kind, strategy, overall_severity, risk_label, risk_score, conditions, document, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		rep.ID.String(), rep.Filename, rep.Kind, string(rep.Strategy),
		string(rep.Interpretation.Overall), rep.Risk.Label, rep.Risk.Score,
		string(conds), string(doc), rep.CreatedAt.UTC().Format(sqliteTime))
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

func (r *analysisRepoSQLite) GetByID(ctx context.Context, id uuid.UUID) (*Report, error) {
	var doc string
	err := r.db.QueryRowContext(ctx, `SELECT document FROM analysis WHERE id = ?`, id.String()).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	var rep Report
	if err := json.Unmarshal([]byte(doc), &rep); err != nil {
		return nil, fmt.Errorf("decode analysis %s: %w", id, err)
	}
	return &rep, nil
}

func (r *analysisRepoSQLite) List(ctx context.Context, limit, offset int) ([]*Summary, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analysis`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count analyses: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, filename, kind, overall_severity, risk_label, risk_score, conditions, created_at
		FROM analysis ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var items []*Summary
	for rows.Next() {
		var s Summary
		var id, overall, conds, created string
		if err := rows.Scan(&id, &s.Filename, &s.Kind, &overall, &s.RiskLabel, &s.RiskScore, &conds, &created); err != nil {
			return nil, 0, fmt.Errorf("scan analysis: %w", err)
		}
		if s.ID, err = uuid.Parse(id); err != nil {
			return nil, 0, fmt.Errorf("parse analysis id %q: %w", id, err)
		}
		if err := json.Unmarshal([]byte(conds), &s.Conditions); err != nil {
			return nil, 0, fmt.Errorf("decode conditions for %s: %w", id, err)
		}
		if s.CreatedAt, err = time.Parse(sqliteTime, created); err != nil {
			return nil, 0, fmt.Errorf("parse created_at for %s: %w", id, err)
		}
		s.Overall = severityOf(overall)
		items = append(items, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate analyses: %w", err)
	}
	return items, total, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
