package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/draftiq/scoutsync/internal/model"
)

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
CREATE TABLE IF NOT EXISTS entities (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	position          TEXT NOT NULL,
	school            TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'active',
	source_record_ids TEXT NOT NULL DEFAULT '[]',
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS field_values (
	entity_id  TEXT NOT NULL REFERENCES entities(id),
	field      TEXT NOT NULL,
	value      TEXT NOT NULL,
	source     TEXT NOT NULL,
	rule       TEXT NOT NULL,
	conflicted INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (entity_id, field)
);

CREATE TABLE IF NOT EXISTS conflicts (
	id             TEXT PRIMARY KEY,
	entity_id      TEXT NOT NULL REFERENCES entities(id),
	field          TEXT NOT NULL,
	candidates     TEXT NOT NULL,
	winning_source TEXT NOT NULL,
	rule           TEXT NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS quality_rules (
	id             TEXT PRIMARY KEY,
	field          TEXT NOT NULL,
	scope          TEXT NOT NULL DEFAULT 'all',
	source         TEXT NOT NULL DEFAULT 'all',
	type           TEXT NOT NULL,
	min            REAL NOT NULL DEFAULT 0,
	max            REAL NOT NULL DEFAULT 0,
	threshold      REAL NOT NULL DEFAULT 0,
	threshold_kind TEXT NOT NULL DEFAULT '',
	relation       TEXT NOT NULL DEFAULT '',
	related_field  TEXT NOT NULL DEFAULT '',
	ratio          REAL NOT NULL DEFAULT 0,
	required       INTEGER NOT NULL DEFAULT 0,
	severity       TEXT NOT NULL,
	enabled        INTEGER NOT NULL DEFAULT 1,
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS violations (
	id         TEXT PRIMARY KEY,
	entity_id  TEXT NOT NULL REFERENCES entities(id),
	rule_id    TEXT NOT NULL,
	field      TEXT NOT NULL,
	observed   TEXT NOT NULL,
	expected   TEXT NOT NULL,
	severity   TEXT NOT NULL,
	review     TEXT NOT NULL DEFAULT 'pending',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS executions (
	id           TEXT PRIMARY KEY,
	triggered_by TEXT NOT NULL,
	status       TEXT NOT NULL,
	stages       TEXT NOT NULL DEFAULT '[]',
	started_at   DATETIME NOT NULL,
	ended_at     DATETIME
);

CREATE INDEX IF NOT EXISTS idx_entities_status ON entities(status);
CREATE INDEX IF NOT EXISTS idx_entities_position ON entities(position);
CREATE INDEX IF NOT EXISTS idx_field_values_field ON field_values(field);
CREATE INDEX IF NOT EXISTS idx_conflicts_entity_field ON conflicts(entity_id, field);
CREATE INDEX IF NOT EXISTS idx_violations_entity ON violations(entity_id);
CREATE INDEX IF NOT EXISTS idx_violations_review ON violations(review);
CREATE INDEX IF NOT EXISTS idx_executions_started_at ON executions(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const entityColumns = `id, name, position, school, status, source_record_ids, created_at, updated_at`

func (s *SQLiteStore) ListEntities(ctx context.Context) ([]model.CanonicalEntity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entityColumns+` FROM entities ORDER BY created_at`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list entities")
	}
	defer rows.Close()
	return collectEntities(rows)
}

func (s *SQLiteStore) ListEntitiesByStatus(ctx context.Context, status model.EntityStatus) ([]model.CanonicalEntity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE status = ? ORDER BY created_at`,
		string(status))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list entities by status")
	}
	defer rows.Close()
	return collectEntities(rows)
}

func (s *SQLiteStore) GetEntity(ctx context.Context, id string) (*model.CanonicalEntity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = ?`, id)
	e, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get entity %s", id)
	}
	return e, nil
}

func (s *SQLiteStore) CreateEntity(ctx context.Context, e *model.CanonicalEntity) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	idsJSON, err := json.Marshal(e.SourceRecordIDs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal source record ids")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entities (id, name, position, school, status, source_record_ids, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.Position, e.School, string(e.Status), string(idsJSON), e.CreatedAt, e.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert entity")
}

func (s *SQLiteStore) UpdateEntity(ctx context.Context, e *model.CanonicalEntity) error {
	idsJSON, err := json.Marshal(e.SourceRecordIDs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal source record ids")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE entities SET name = ?, position = ?, school = ?, status = ?, source_record_ids = ?, updated_at = ?
		 WHERE id = ?`,
		e.Name, e.Position, e.School, string(e.Status), string(idsJSON), e.UpdatedAt, e.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update entity %s", e.ID)
	}
	return checkRowsAffected(res, "entity", e.ID)
}

func (s *SQLiteStore) UpdateEntityStatus(ctx context.Context, entityID string, status model.EntityStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE entities SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), entityID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update entity status %s", entityID)
	}
	return checkRowsAffected(res, "entity", entityID)
}

func (s *SQLiteStore) GetFieldValue(ctx context.Context, entityID, field string) (*model.FieldValue, error) {
	var fv model.FieldValue
	err := s.db.QueryRowContext(ctx,
		`SELECT entity_id, field, value, source, rule, conflicted, updated_at
		 FROM field_values WHERE entity_id = ? AND field = ?`,
		entityID, field,
	).Scan(&fv.EntityID, &fv.Field, &fv.Value, &fv.Source, &fv.Rule, &fv.Conflicted, &fv.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get field value %s/%s", entityID, field)
	}
	return &fv, nil
}

func (s *SQLiteStore) UpsertFieldValue(ctx context.Context, fv *model.FieldValue) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO field_values (entity_id, field, value, source, rule, conflicted, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (entity_id, field) DO UPDATE SET
		   value = excluded.value, source = excluded.source, rule = excluded.rule,
		   conflicted = excluded.conflicted, updated_at = excluded.updated_at`,
		fv.EntityID, fv.Field, fv.Value, fv.Source, fv.Rule, fv.Conflicted, fv.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert field value %s/%s", fv.EntityID, fv.Field)
}

func (s *SQLiteStore) ListFieldValues(ctx context.Context, entityID string) ([]model.FieldValue, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_id, field, value, source, rule, conflicted, updated_at
		 FROM field_values WHERE entity_id = ? ORDER BY field`,
		entityID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list field values %s", entityID)
	}
	defer rows.Close()

	var fvs []model.FieldValue
	for rows.Next() {
		var fv model.FieldValue
		if err := rows.Scan(&fv.EntityID, &fv.Field, &fv.Value, &fv.Source, &fv.Rule, &fv.Conflicted, &fv.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan field value")
		}
		fvs = append(fvs, fv)
	}
	return fvs, eris.Wrap(rows.Err(), "sqlite: list field values iterate")
}

// ValuesByFieldScope returns the numeric values of a field across every
// entity in the position scope. Non-numeric values are skipped; statistics
// over mixed fields only consider parseable data.
func (s *SQLiteStore) ValuesByFieldScope(ctx context.Context, field, position string) ([]float64, error) {
	query := `SELECT fv.value FROM field_values fv
	          JOIN entities e ON e.id = fv.entity_id
	          WHERE fv.field = ?`
	args := []any{field}
	if position != "" && position != model.ScopeAll {
		query += ` AND e.position = ?`
		args = append(args, position)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: values for %s/%s", field, position)
	}
	defer rows.Close()

	var vals []float64
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan value")
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			vals = append(vals, f)
		}
	}
	return vals, eris.Wrap(rows.Err(), "sqlite: values iterate")
}

func (s *SQLiteStore) CreateConflict(ctx context.Context, cr *model.ConflictRecord) error {
	if cr.ID == "" {
		cr.ID = uuid.New().String()
	}
	candsJSON, err := json.Marshal(cr.Candidates)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal candidates")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conflicts (id, entity_id, field, candidates, winning_source, rule, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cr.ID, cr.EntityID, cr.Field, string(candsJSON), cr.WinningSource, cr.Rule, cr.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert conflict")
}

func (s *SQLiteStore) LatestConflict(ctx context.Context, entityID, field string) (*model.ConflictRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, entity_id, field, candidates, winning_source, rule, created_at
		 FROM conflicts WHERE entity_id = ? AND field = ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
		entityID, field,
	)
	cr, err := scanConflict(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: latest conflict %s/%s", entityID, field)
	}
	return cr, nil
}

func (s *SQLiteStore) ListConflicts(ctx context.Context, entityID string) ([]model.ConflictRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entity_id, field, candidates, winning_source, rule, created_at
		 FROM conflicts WHERE entity_id = ? ORDER BY created_at DESC`,
		entityID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list conflicts %s", entityID)
	}
	defer rows.Close()

	var crs []model.ConflictRecord
	for rows.Next() {
		cr, err := scanConflict(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan conflict")
		}
		crs = append(crs, *cr)
	}
	return crs, eris.Wrap(rows.Err(), "sqlite: list conflicts iterate")
}

const ruleColumns = `id, field, scope, source, type, min, max, threshold, threshold_kind, relation, related_field, ratio, required, severity, enabled, updated_at`

func (s *SQLiteStore) ListRules(ctx context.Context) ([]model.QualityRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM quality_rules ORDER BY field, id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list rules")
	}
	defer rows.Close()
	return collectRules(rows)
}

func (s *SQLiteStore) ListEnabledRules(ctx context.Context) ([]model.QualityRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM quality_rules WHERE enabled = 1 ORDER BY field, id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list enabled rules")
	}
	defer rows.Close()
	return collectRules(rows)
}

func (s *SQLiteStore) CreateRule(ctx context.Context, r *model.QualityRule) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quality_rules (`+ruleColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Field, r.Scope, r.Source, string(r.Type),
		r.Min, r.Max, r.Threshold, string(r.ThresholdKind), string(r.Relation),
		r.RelatedField, r.Ratio, r.Required, string(r.Severity), r.Enabled, r.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert rule")
}

func (s *SQLiteStore) SetRuleEnabled(ctx context.Context, id string, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE quality_rules SET enabled = ?, updated_at = ? WHERE id = ?`,
		enabled, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set rule enabled %s", id)
	}
	return checkRowsAffected(res, "rule", id)
}

func (s *SQLiteStore) UpdateRuleThresholds(ctx context.Context, id string, min, max, threshold float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE quality_rules SET min = ?, max = ?, threshold = ?, updated_at = ? WHERE id = ?`,
		min, max, threshold, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update rule thresholds %s", id)
	}
	return checkRowsAffected(res, "rule", id)
}

func (s *SQLiteStore) CreateViolation(ctx context.Context, v *model.Violation) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO violations (id, entity_id, rule_id, field, observed, expected, severity, review, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.EntityID, v.RuleID, v.Field, v.Observed, v.Expected,
		string(v.Severity), string(v.Review), v.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert violation")
}

func (s *SQLiteStore) GetViolation(ctx context.Context, id string) (*model.Violation, error) {
	var v model.Violation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, entity_id, rule_id, field, observed, expected, severity, review, created_at
		 FROM violations WHERE id = ?`, id,
	).Scan(&v.ID, &v.EntityID, &v.RuleID, &v.Field, &v.Observed, &v.Expected, &v.Severity, &v.Review, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get violation %s", id)
	}
	return &v, nil
}

func (s *SQLiteStore) LatestViolation(ctx context.Context, entityID, ruleID, field string) (*model.Violation, error) {
	var v model.Violation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, entity_id, rule_id, field, observed, expected, severity, review, created_at
		 FROM violations WHERE entity_id = ? AND rule_id = ? AND field = ?
		 ORDER BY created_at DESC LIMIT 1`, entityID, ruleID, field,
	).Scan(&v.ID, &v.EntityID, &v.RuleID, &v.Field, &v.Observed, &v.Expected, &v.Severity, &v.Review, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: latest violation %s/%s", entityID, ruleID)
	}
	return &v, nil
}

func (s *SQLiteStore) ListViolations(ctx context.Context, filter ViolationFilter) ([]model.Violation, error) {
	query := `SELECT id, entity_id, rule_id, field, observed, expected, severity, review, created_at
	          FROM violations WHERE true`
	args := []any{}

	if filter.EntityID != "" {
		query += ` AND entity_id = ?`
		args = append(args, filter.EntityID)
	}
	if filter.Severity != "" {
		query += ` AND severity = ?`
		args = append(args, string(filter.Severity))
	}
	if filter.Review != "" {
		query += ` AND review = ?`
		args = append(args, string(filter.Review))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list violations")
	}
	defer rows.Close()

	var vs []model.Violation
	for rows.Next() {
		var v model.Violation
		if err := rows.Scan(&v.ID, &v.EntityID, &v.RuleID, &v.Field, &v.Observed, &v.Expected, &v.Severity, &v.Review, &v.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan violation")
		}
		vs = append(vs, v)
	}
	return vs, eris.Wrap(rows.Err(), "sqlite: list violations iterate")
}

func (s *SQLiteStore) UpdateViolationReview(ctx context.Context, id string, status model.ReviewStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE violations SET review = ? WHERE id = ?`,
		string(status), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update violation review %s", id)
	}
	return checkRowsAffected(res, "violation", id)
}

func (s *SQLiteStore) OpenCriticalCount(ctx context.Context, entityID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM violations
		 WHERE entity_id = ? AND severity = ? AND review = ?`,
		entityID, string(model.SeverityCritical), string(model.ReviewPending),
	).Scan(&count)
	return count, eris.Wrapf(err, "sqlite: open critical count %s", entityID)
}

func (s *SQLiteStore) SaveExecution(ctx context.Context, e *model.PipelineExecution) error {
	stagesJSON, err := json.Marshal(e.Stages)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stages")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO executions (id, triggered_by, status, stages, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   status = excluded.status, stages = excluded.stages, ended_at = excluded.ended_at`,
		e.ID, e.TriggeredBy, string(e.Status), string(stagesJSON), e.StartedAt, e.EndedAt,
	)
	return eris.Wrap(err, "sqlite: save execution")
}

func (s *SQLiteStore) ListExecutions(ctx context.Context, limit int) ([]model.PipelineExecution, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, triggered_by, status, stages, started_at, ended_at
		 FROM executions ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list executions")
	}
	defer rows.Close()

	var execs []model.PipelineExecution
	for rows.Next() {
		var e model.PipelineExecution
		var stagesJSON string
		var endedAt sql.NullTime
		if err := rows.Scan(&e.ID, &e.TriggeredBy, &e.Status, &stagesJSON, &e.StartedAt, &endedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan execution")
		}
		if err := json.Unmarshal([]byte(stagesJSON), &e.Stages); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal stages")
		}
		if endedAt.Valid {
			e.EndedAt = endedAt.Time
		}
		execs = append(execs, e)
	}
	return execs, eris.Wrap(rows.Err(), "sqlite: list executions iterate")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s", entity)
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

// scannable abstracts *sql.Row and *sql.Rows for shared scan helpers.
type scannable interface {
	Scan(dest ...any) error
}

func scanEntity(row scannable) (*model.CanonicalEntity, error) {
	var e model.CanonicalEntity
	var idsJSON string
	if err := row.Scan(&e.ID, &e.Name, &e.Position, &e.School, &e.Status, &idsJSON, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(idsJSON), &e.SourceRecordIDs); err != nil {
		return nil, eris.Wrap(err, "unmarshal source record ids")
	}
	return &e, nil
}

func collectEntities(rows *sql.Rows) ([]model.CanonicalEntity, error) {
	var ents []model.CanonicalEntity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan entity")
		}
		ents = append(ents, *e)
	}
	return ents, eris.Wrap(rows.Err(), "sqlite: entities iterate")
}

func scanConflict(row scannable) (*model.ConflictRecord, error) {
	var cr model.ConflictRecord
	var candsJSON string
	if err := row.Scan(&cr.ID, &cr.EntityID, &cr.Field, &candsJSON, &cr.WinningSource, &cr.Rule, &cr.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(candsJSON), &cr.Candidates); err != nil {
		return nil, eris.Wrap(err, "unmarshal candidates")
	}
	return &cr, nil
}

func scanRule(row scannable) (*model.QualityRule, error) {
	var r model.QualityRule
	if err := row.Scan(&r.ID, &r.Field, &r.Scope, &r.Source, &r.Type,
		&r.Min, &r.Max, &r.Threshold, &r.ThresholdKind, &r.Relation,
		&r.RelatedField, &r.Ratio, &r.Required, &r.Severity, &r.Enabled, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func collectRules(rows *sql.Rows) ([]model.QualityRule, error) {
	var rules []model.QualityRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan rule")
		}
		rules = append(rules, *r)
	}
	return rules, eris.Wrap(rows.Err(), "sqlite: rules iterate")
}
