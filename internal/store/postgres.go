package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/compliance-cli/internal/db"
	"github.com/sells-group/compliance-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

const (
	sqlInsertAssessment = `INSERT INTO assessments (id, submitted_at, bank_version, email, company_name, overall_percentage, overall_risk_tier, result)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (id) DO NOTHING`
	sqlGetAssessment = `SELECT result FROM assessments WHERE id = $1`
	sqlInsertLead    = `INSERT INTO leads (id, submitted_at, email, company_name, overall_percentage, overall_risk_tier, status, salesforce_id, operating_states, data, updated_at)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) ON CONFLICT (id) DO NOTHING`
	sqlGetLead           = `SELECT data, status, salesforce_id FROM leads WHERE id = $1`
	sqlUpdateLeadStatus  = `UPDATE leads SET status = $1, updated_at = $2 WHERE id = $3`
	sqlSetLeadSalesforce = `UPDATE leads SET salesforce_id = $1, updated_at = $2 WHERE id = $3`
)

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_assessment":      sqlInsertAssessment,
	"get_assessment":         sqlGetAssessment,
	"insert_lead":            sqlInsertLead,
	"get_lead":               sqlGetLead,
	"update_lead_status":     sqlUpdateLeadStatus,
	"set_lead_salesforce_id": sqlSetLeadSalesforce,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS assessments (
	id                 TEXT PRIMARY KEY,
	submitted_at       TIMESTAMPTZ NOT NULL,
	bank_version       TEXT NOT NULL,
	email              TEXT NOT NULL DEFAULT '',
	company_name       TEXT NOT NULL DEFAULT '',
	overall_percentage DOUBLE PRECISION NOT NULL,
	overall_risk_tier  TEXT NOT NULL,
	result             JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS leads (
	id                 TEXT PRIMARY KEY,
	submitted_at       TIMESTAMPTZ NOT NULL,
	email              TEXT NOT NULL DEFAULT '',
	company_name       TEXT NOT NULL DEFAULT '',
	overall_percentage DOUBLE PRECISION NOT NULL,
	overall_risk_tier  TEXT NOT NULL,
	status             TEXT NOT NULL DEFAULT 'new',
	salesforce_id      TEXT NOT NULL DEFAULT '',
	operating_states   TEXT[] NOT NULL DEFAULT '{}',
	data               JSONB NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_assessments_submitted_at ON assessments(submitted_at DESC);
CREATE INDEX IF NOT EXISTS idx_leads_submitted_at ON leads(submitted_at DESC);
CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_operating_states ON leads USING GIN (operating_states);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// pgExecer is satisfied by db.Pool and pgx.Tx.
type pgExecer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func (s *PostgresStore) SaveAssessment(ctx context.Context, result *model.AssessmentResult) error {
	return insertAssessmentPostgres(ctx, s.pool, result)
}

func insertAssessmentPostgres(ctx context.Context, ex pgExecer, result *model.AssessmentResult) error {
	ensureID(&result.ID)
	data, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal assessment")
	}
	tag, err := ex.Exec(ctx, sqlInsertAssessment,
		result.ID, result.SubmittedAt.UTC(), result.BankVersion, result.Email, result.CompanyName,
		result.OverallPercentage, string(result.OverallRiskTier), data,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert assessment %s", result.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrAlreadyExists, "assessment %s", result.ID)
	}
	return nil
}

func (s *PostgresStore) GetAssessment(ctx context.Context, id string) (*model.AssessmentResult, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, sqlGetAssessment, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "assessment %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get assessment %s", id)
	}
	var r model.AssessmentResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal assessment")
	}
	return &r, nil
}

func (s *PostgresStore) ListAssessments(ctx context.Context, filter AssessmentFilter) ([]model.AssessmentResult, error) {
	query := `SELECT result FROM assessments WHERE 1=1`
	var args []any
	argN := 1

	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND submitted_at >= $%d`, argN)
		args = append(args, filter.Since.UTC())
		argN++
	}
	if !filter.Until.IsZero() {
		query += fmt.Sprintf(` AND submitted_at < $%d`, argN)
		args = append(args, filter.Until.UTC())
		argN++
	}
	query += ` ORDER BY submitted_at DESC, id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argN)
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list assessments")
	}
	defer rows.Close()

	var out []model.AssessmentResult
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan assessment")
		}
		var r model.AssessmentResult
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal assessment")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list assessments iterate")
}

func (s *PostgresStore) SaveLead(ctx context.Context, lead *model.Lead) error {
	return insertLeadPostgres(ctx, s.pool, lead)
}

func insertLeadPostgres(ctx context.Context, ex pgExecer, lead *model.Lead) error {
	ensureID(&lead.ID)
	if lead.Status == "" {
		lead.Status = model.LeadStatusNew
	}
	if err := validateLeadStatus(lead.Status); err != nil {
		return err
	}
	data, err := json.Marshal(lead)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal lead")
	}
	states := lead.OperatingStates
	if states == nil {
		states = []string{}
	}
	tag, err := ex.Exec(ctx, sqlInsertLead,
		lead.ID, lead.SubmittedAt.UTC(), lead.Email, lead.CompanyName, lead.OverallPercentage,
		string(lead.OverallRiskTier), string(lead.Status), lead.SalesforceID, states, data, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert lead %s", lead.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrAlreadyExists, "lead %s", lead.ID)
	}
	return nil
}

func (s *PostgresStore) SaveSubmission(ctx context.Context, result *model.AssessmentResult, lead *model.Lead) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin")
	}
	if err := insertAssessmentPostgres(ctx, tx, result); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := insertLeadPostgres(ctx, tx, lead); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit submission")
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	l, err := scanLeadPostgres(s.pool.QueryRow(ctx, sqlGetLead, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "lead %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get lead %s", id)
	}
	return l, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT data, status, salesforce_id FROM leads WHERE 1=1`
	var args []any
	argN := 1

	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND submitted_at >= $%d`, argN)
		args = append(args, filter.Since.UTC())
		argN++
	}
	if !filter.Until.IsZero() {
		query += fmt.Sprintf(` AND submitted_at < $%d`, argN)
		args = append(args, filter.Until.UTC())
		argN++
	}
	if filter.MinScore != nil {
		query += fmt.Sprintf(` AND overall_percentage >= $%d`, argN)
		args = append(args, *filter.MinScore)
		argN++
	}
	if filter.MaxScore != nil {
		query += fmt.Sprintf(` AND overall_percentage <= $%d`, argN)
		args = append(args, *filter.MaxScore)
		argN++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argN)
		args = append(args, string(filter.Status))
		argN++
	}
	if len(filter.States) > 0 {
		query += fmt.Sprintf(` AND EXISTS (SELECT 1 FROM unnest(operating_states) st WHERE upper(trim(st)) = ANY($%d))`, argN)
		args = append(args, upperTrimmed(filter.States))
		argN++
	}
	query += ` ORDER BY submitted_at DESC, id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argN)
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLeadPostgres(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) UpdateLeadStatus(ctx context.Context, id string, status model.LeadStatus) error {
	if err := validateLeadStatus(status); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, sqlUpdateLeadStatus, string(status), time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "lead %s", id)
	}
	return nil
}

func (s *PostgresStore) SetLeadSalesforceID(ctx context.Context, id, salesforceID string) error {
	tag, err := s.pool.Exec(ctx, sqlSetLeadSalesforce, salesforceID, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: set lead salesforce id %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "lead %s", id)
	}
	return nil
}

func scanLeadPostgres(row pgx.Row) (*model.Lead, error) {
	var data []byte
	var status, sfID string
	if err := row.Scan(&data, &status, &sfID); err != nil {
		return nil, err
	}
	var l model.Lead
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, eris.Wrap(err, "unmarshal lead")
	}
	l.Status = model.LeadStatus(status)
	l.SalesforceID = sfID
	return &l, nil
}
