package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type analysisRepoPG struct{ pool *pgxpool.Pool }

// NewRepoPG returns a Postgres-backed Repository. The analysis table is
// created by the platform migrations.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &analysisRepoPG{pool: pool}
}

func (r *analysisRepoPG) Create(ctx context.Context, rep *Report) error {
	doc, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO analysis (id, filename, kind, strategy, overall_severity, risk_label, risk_score, conditions, document, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		rep.ID, rep.Filename, rep.Kind, string(rep.Strategy),
		string(rep.Interpretation.Overall), rep.Risk.Label, rep.Risk.Score,
		rep.Conditions, doc, rep.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

func (r *analysisRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Report, error) {
	var doc []byte
	err := r.pool.QueryRow(ctx, `SELECT document FROM analysis WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	var rep Report
	if err := json.Unmarshal(doc, &rep); err != nil {
		return nil, fmt.Errorf("decode analysis %s: %w", id, err)
	}
	return &rep, nil
}

func (r *analysisRepoPG) List(ctx context.Context, limit, offset int) ([]*Summary, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM analysis`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count analyses: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, filename, kind, overall_severity, risk_label, risk_score, conditions, created_at
		FROM analysis ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var items []*Summary
	for rows.Next() {
		var s Summary
		var overall string
		if err := rows.Scan(&s.ID, &s.Filename, &s.Kind, &overall, &s.RiskLabel, &s.RiskScore, &s.Conditions, &s.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan analysis: %w", err)
		}
		s.Overall = severityOf(overall)
		items = append(items, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate analyses: %w", err)
	}
	return items, total, nil
}
