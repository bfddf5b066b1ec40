package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/compliance-cli/internal/model"
)

// sqliteTime is fixed width so stored timestamps sort lexically.
const sqliteTime = "2006-01-02 15:04:05.000000000"

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS assessments (
	id                 TEXT PRIMARY KEY,
	submitted_at       TEXT NOT NULL,
	bank_version       TEXT NOT NULL,
	email              TEXT NOT NULL DEFAULT '',
	company_name       TEXT NOT NULL DEFAULT '',
	overall_percentage REAL NOT NULL,
	overall_risk_tier  TEXT NOT NULL,
	result             TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS leads (
	id                 TEXT PRIMARY KEY,
	submitted_at       TEXT NOT NULL,
	email              TEXT NOT NULL DEFAULT '',
	company_name       TEXT NOT NULL DEFAULT '',
	overall_percentage REAL NOT NULL,
	overall_risk_tier  TEXT NOT NULL,
	status             TEXT NOT NULL DEFAULT 'new',
	salesforce_id      TEXT NOT NULL DEFAULT '',
	data               TEXT NOT NULL,
	updated_at         TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assessments_submitted_at ON assessments(submitted_at);
CREATE INDEX IF NOT EXISTS idx_leads_submitted_at ON leads(submitted_at);
CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// sqlExecer is satisfied by *sql.DB and *sql.Tx.
type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) SaveAssessment(ctx context.Context, result *model.AssessmentResult) error {
	return insertAssessmentSQLite(ctx, s.db, result)
}

func insertAssessmentSQLite(ctx context.Context, ex sqlExecer, result *model.AssessmentResult) error {
	ensureID(&result.ID)
	data, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal assessment")
	}
	res, err := ex.ExecContext(ctx,
		`INSERT INTO assessments (id, submitted_at, bank_version, email, company_name, overall_percentage, overall_risk_tier, result)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		result.ID, formatTime(result.SubmittedAt), result.BankVersion, result.Email, result.CompanyName,
		result.OverallPercentage, string(result.OverallRiskTier), string(data),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert assessment %s", result.ID)
	}
	return checkInserted(res, "assessment", result.ID)
}

func (s *SQLiteStore) GetAssessment(ctx context.Context, id string) (*model.AssessmentResult, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT result FROM assessments WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "assessment %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get assessment %s", id)
	}
	var r model.AssessmentResult
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal assessment")
	}
	return &r, nil
}

func (s *SQLiteStore) ListAssessments(ctx context.Context, filter AssessmentFilter) ([]model.AssessmentResult, error) {
	query := `SELECT result FROM assessments WHERE 1=1`
	var args []any

	if !filter.Since.IsZero() {
		query += ` AND submitted_at >= ?`
		args = append(args, formatTime(filter.Since))
	}
	if !filter.Until.IsZero() {
		query += ` AND submitted_at < ?`
		args = append(args, formatTime(filter.Until))
	}
	query += ` ORDER BY submitted_at DESC, id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list assessments")
	}
	defer rows.Close()

	var out []model.AssessmentResult
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan assessment")
		}
		var r model.AssessmentResult
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal assessment")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list assessments iterate")
}

func (s *SQLiteStore) SaveLead(ctx context.Context, lead *model.Lead) error {
	return insertLeadSQLite(ctx, s.db, lead)
}

func insertLeadSQLite(ctx context.Context, ex sqlExecer, lead *model.Lead) error {
	ensureID(&lead.ID)
	if lead.Status == "" {
		lead.Status = model.LeadStatusNew
	}
	if err := validateLeadStatus(lead.Status); err != nil {
		return err
	}
	data, err := json.Marshal(lead)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal lead")
	}
	res, err := ex.ExecContext(ctx,
		`INSERT INTO leads (id, submitted_at, email, company_name, overall_percentage, overall_risk_tier, status, salesforce_id, data, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		lead.ID, formatTime(lead.SubmittedAt), lead.Email, lead.CompanyName, lead.OverallPercentage,
		string(lead.OverallRiskTier), string(lead.Status), lead.SalesforceID, string(data), formatTime(time.Now()),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert lead %s", lead.ID)
	}
	return checkInserted(res, "lead", lead.ID)
}

func (s *SQLiteStore) SaveSubmission(ctx context.Context, result *model.AssessmentResult, lead *model.Lead) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertAssessmentSQLite(ctx, tx, result); err != nil {
		return err
	}
	if err := insertLeadSQLite(ctx, tx, lead); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit submission")
}

const sqliteLeadColumns = `data, status, salesforce_id`

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteLeadColumns+` FROM leads WHERE id = ?`, id)
	l, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "lead %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", id)
	}
	return l, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + sqliteLeadColumns + ` FROM leads WHERE 1=1`
	var args []any

	if !filter.Since.IsZero() {
		query += ` AND submitted_at >= ?`
		args = append(args, formatTime(filter.Since))
	}
	if !filter.Until.IsZero() {
		query += ` AND submitted_at < ?`
		args = append(args, formatTime(filter.Until))
	}
	if filter.MinScore != nil {
		query += ` AND overall_percentage >= ?`
		args = append(args, *filter.MinScore)
	}
	if filter.MaxScore != nil {
		query += ` AND overall_percentage <= ?`
		args = append(args, *filter.MaxScore)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY submitted_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads iterate")
	}
	return applyStatesAndLimit(leads, filter), nil
}

func (s *SQLiteStore) UpdateLeadStatus(ctx context.Context, id string, status model.LeadStatus) error {
	if err := validateLeadStatus(status); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(time.Now()), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead status %s", id)
	}
	return checkRowsAffected(res, "lead", id)
}

func (s *SQLiteStore) SetLeadSalesforceID(ctx context.Context, id, salesforceID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET salesforce_id = ?, updated_at = ? WHERE id = ?`,
		salesforceID, formatTime(time.Now()), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set lead salesforce id %s", id)
	}
	return checkRowsAffected(res, "lead", id)
}

// helpers

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTime)
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func checkInserted(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrAlreadyExists, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (*model.Lead, error) {
	var data, status, sfID string
	if err := row.Scan(&data, &status, &sfID); err != nil {
		return nil, err
	}
	var l model.Lead
	if err := json.Unmarshal([]byte(data), &l); err != nil {
		return nil, eris.Wrap(err, "unmarshal lead")
	}
	l.Status = model.LeadStatus(status)
	l.SalesforceID = sfID
	return &l, nil
}
