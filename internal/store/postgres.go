package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/draftiq/scoutsync/internal/db"
	"github.com/draftiq/scoutsync/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot reconcile-path operations.
var preparedStatements = map[string]string{
	"get_field_value": `SELECT entity_id, field, value, source, rule, conflicted, updated_at
	                    FROM field_values WHERE entity_id = $1 AND field = $2`,
	"upsert_field_value": `INSERT INTO field_values (entity_id, field, value, source, rule, conflicted, updated_at)
	                       VALUES ($1, $2, $3, $4, $5, $6, $7)
	                       ON CONFLICT (entity_id, field) DO UPDATE SET
	                         value = EXCLUDED.value, source = EXCLUDED.source, rule = EXCLUDED.rule,
	                         conflicted = EXCLUDED.conflicted, updated_at = EXCLUDED.updated_at`,
	"insert_conflict": `INSERT INTO conflicts (id, entity_id, field, candidates, winning_source, rule, created_at)
	                    VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"latest_conflict": `SELECT id, entity_id, field, candidates, winning_source, rule, created_at
	                    FROM conflicts WHERE entity_id = $1 AND field = $2
	                    ORDER BY created_at DESC, id DESC LIMIT 1`,
	"insert_violation": `INSERT INTO violations (id, entity_id, rule_id, field, observed, expected, severity, review, created_at)
	                     VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
	"open_critical_count": `SELECT COUNT(*) FROM violations
	                        WHERE entity_id = $1 AND severity = $2 AND review = $3`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
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

	// Prepare frequently-used statements on each new connection.
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
CREATE TABLE IF NOT EXISTS entities (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name              TEXT NOT NULL,
	position          TEXT NOT NULL,
	school            TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'active',
	source_record_ids JSONB NOT NULL DEFAULT '[]',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS field_values (
	entity_id  TEXT NOT NULL REFERENCES entities(id),
	field      TEXT NOT NULL,
	value      TEXT NOT NULL,
	source     TEXT NOT NULL,
	rule       TEXT NOT NULL,
	conflicted BOOLEAN NOT NULL DEFAULT false,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (entity_id, field)
);

CREATE TABLE IF NOT EXISTS conflicts (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	entity_id      TEXT NOT NULL REFERENCES entities(id),
	field          TEXT NOT NULL,
	candidates     JSONB NOT NULL,
	winning_source TEXT NOT NULL,
	rule           TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS quality_rules (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	field          TEXT NOT NULL,
	scope          TEXT NOT NULL DEFAULT 'all',
	source         TEXT NOT NULL DEFAULT 'all',
	type           TEXT NOT NULL,
	min            DOUBLE PRECISION NOT NULL DEFAULT 0,
	max            DOUBLE PRECISION NOT NULL DEFAULT 0,
	threshold      DOUBLE PRECISION NOT NULL DEFAULT 0,
	threshold_kind TEXT NOT NULL DEFAULT '',
	relation       TEXT NOT NULL DEFAULT '',
	related_field  TEXT NOT NULL DEFAULT '',
	ratio          DOUBLE PRECISION NOT NULL DEFAULT 0,
	required       BOOLEAN NOT NULL DEFAULT false,
	severity       TEXT NOT NULL,
	enabled        BOOLEAN NOT NULL DEFAULT true,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS violations (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	entity_id  TEXT NOT NULL REFERENCES entities(id),
	rule_id    TEXT NOT NULL,
	field      TEXT NOT NULL,
	observed   TEXT NOT NULL,
	expected   TEXT NOT NULL,
	severity   TEXT NOT NULL,
	review     TEXT NOT NULL DEFAULT 'pending',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS executions (
	id           TEXT PRIMARY KEY,
	triggered_by TEXT NOT NULL,
	status       TEXT NOT NULL,
	stages       JSONB NOT NULL DEFAULT '[]',
	started_at   TIMESTAMPTZ NOT NULL,
	ended_at     TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_entities_status ON entities(status);
CREATE INDEX IF NOT EXISTS idx_entities_position ON entities(position);
CREATE INDEX IF NOT EXISTS idx_field_values_field ON field_values(field);
CREATE INDEX IF NOT EXISTS idx_conflicts_entity_field ON conflicts(entity_id, field);
CREATE INDEX IF NOT EXISTS idx_violations_entity ON violations(entity_id);
CREATE INDEX IF NOT EXISTS idx_violations_review ON violations(review);
CREATE INDEX IF NOT EXISTS idx_executions_started_at ON executions(started_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

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

func (s *PostgresStore) ListEntities(ctx context.Context) ([]model.CanonicalEntity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+entityColumns+` FROM entities ORDER BY created_at`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list entities")
	}
	defer rows.Close()
	return collectEntitiesPgx(rows)
}

func (s *PostgresStore) ListEntitiesByStatus(ctx context.Context, status model.EntityStatus) ([]model.CanonicalEntity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE status = $1 ORDER BY created_at`,
		string(status))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list entities by status")
	}
	defer rows.Close()
	return collectEntitiesPgx(rows)
}

func (s *PostgresStore) GetEntity(ctx context.Context, id string) (*model.CanonicalEntity, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = $1`, id)
	e, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get entity %s", id)
	}
	return e, nil
}

func (s *PostgresStore) CreateEntity(ctx context.Context, e *model.CanonicalEntity) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	idsJSON, err := json.Marshal(e.SourceRecordIDs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal source record ids")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO entities (id, name, position, school, status, source_record_ids, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.Name, e.Position, e.School, string(e.Status), idsJSON, e.CreatedAt, e.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert entity")
}

func (s *PostgresStore) UpdateEntity(ctx context.Context, e *model.CanonicalEntity) error {
	idsJSON, err := json.Marshal(e.SourceRecordIDs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal source record ids")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE entities SET name = $1, position = $2, school = $3, status = $4, source_record_ids = $5, updated_at = $6
		 WHERE id = $7`,
		e.Name, e.Position, e.School, string(e.Status), idsJSON, e.UpdatedAt, e.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update entity %s", e.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("entity not found: %s", e.ID)
	}
	return nil
}

func (s *PostgresStore) UpdateEntityStatus(ctx context.Context, entityID string, status model.EntityStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE entities SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), entityID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update entity status %s", entityID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("entity not found: %s", entityID)
	}
	return nil
}

func (s *PostgresStore) GetFieldValue(ctx context.Context, entityID, field string) (*model.FieldValue, error) {
	var fv model.FieldValue
	err := s.pool.QueryRow(ctx,
		`SELECT entity_id, field, value, source, rule, conflicted, updated_at
		 FROM field_values WHERE entity_id = $1 AND field = $2`,
		entityID, field,
	).Scan(&fv.EntityID, &fv.Field, &fv.Value, &fv.Source, &fv.Rule, &fv.Conflicted, &fv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get field value %s/%s", entityID, field)
	}
	return &fv, nil
}

func (s *PostgresStore) UpsertFieldValue(ctx context.Context, fv *model.FieldValue) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO field_values (entity_id, field, value, source, rule, conflicted, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (entity_id, field) DO UPDATE SET
		   value = EXCLUDED.value, source = EXCLUDED.source, rule = EXCLUDED.rule,
		   conflicted = EXCLUDED.conflicted, updated_at = EXCLUDED.updated_at`,
		fv.EntityID, fv.Field, fv.Value, fv.Source, fv.Rule, fv.Conflicted, fv.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert field value %s/%s", fv.EntityID, fv.Field)
}

func (s *PostgresStore) ListFieldValues(ctx context.Context, entityID string) ([]model.FieldValue, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT entity_id, field, value, source, rule, conflicted, updated_at
		 FROM field_values WHERE entity_id = $1 ORDER BY field`,
		entityID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list field values %s", entityID)
	}
	defer rows.Close()

	var fvs []model.FieldValue
	for rows.Next() {
		var fv model.FieldValue
		if err := rows.Scan(&fv.EntityID, &fv.Field, &fv.Value, &fv.Source, &fv.Rule, &fv.Conflicted, &fv.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan field value")
		}
		fvs = append(fvs, fv)
	}
	return fvs, eris.Wrap(rows.Err(), "postgres: list field values iterate")
}

func (s *PostgresStore) ValuesByFieldScope(ctx context.Context, field, position string) ([]float64, error) {
	query := `SELECT fv.value FROM field_values fv
	          JOIN entities e ON e.id = fv.entity_id
	          WHERE fv.field = $1`
	args := []any{field}
	if position != "" && position != model.ScopeAll {
		query += ` AND e.position = $2`
		args = append(args, position)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: values for %s/%s", field, position)
	}
	defer rows.Close()

	var vals []float64
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "postgres: scan value")
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			vals = append(vals, f)
		}
	}
	return vals, eris.Wrap(rows.Err(), "postgres: values iterate")
}

func (s *PostgresStore) CreateConflict(ctx context.Context, cr *model.ConflictRecord) error {
	if cr.ID == "" {
		cr.ID = uuid.New().String()
	}
	candsJSON, err := json.Marshal(cr.Candidates)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal candidates")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO conflicts (id, entity_id, field, candidates, winning_source, rule, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		cr.ID, cr.EntityID, cr.Field, candsJSON, cr.WinningSource, cr.Rule, cr.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert conflict")
}

func (s *PostgresStore) LatestConflict(ctx context.Context, entityID, field string) (*model.ConflictRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, entity_id, field, candidates, winning_source, rule, created_at
		 FROM conflicts WHERE entity_id = $1 AND field = $2
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
		entityID, field,
	)
	cr, err := scanConflictPgx(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: latest conflict %s/%s", entityID, field)
	}
	return cr, nil
}

func (s *PostgresStore) ListConflicts(ctx context.Context, entityID string) ([]model.ConflictRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, entity_id, field, candidates, winning_source, rule, created_at
		 FROM conflicts WHERE entity_id = $1 ORDER BY created_at DESC`,
		entityID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list conflicts %s", entityID)
	}
	defer rows.Close()

	var crs []model.ConflictRecord
	for rows.Next() {
		cr, err := scanConflictPgx(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan conflict")
		}
		crs = append(crs, *cr)
	}
	return crs, eris.Wrap(rows.Err(), "postgres: list conflicts iterate")
}

func (s *PostgresStore) ListRules(ctx context.Context) ([]model.QualityRule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+ruleColumns+` FROM quality_rules ORDER BY field, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list rules")
	}
	defer rows.Close()
	return collectRulesPgx(rows)
}

func (s *PostgresStore) ListEnabledRules(ctx context.Context) ([]model.QualityRule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+ruleColumns+` FROM quality_rules WHERE enabled = true ORDER BY field, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list enabled rules")
	}
	defer rows.Close()
	return collectRulesPgx(rows)
}

func (s *PostgresStore) CreateRule(ctx context.Context, r *model.QualityRule) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO quality_rules (`+ruleColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		r.ID, r.Field, r.Scope, r.Source, string(r.Type),
		r.Min, r.Max, r.Threshold, string(r.ThresholdKind), string(r.Relation),
		r.RelatedField, r.Ratio, r.Required, string(r.Severity), r.Enabled, r.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert rule")
}

func (s *PostgresStore) SetRuleEnabled(ctx context.Context, id string, enabled bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE quality_rules SET enabled = $1, updated_at = $2 WHERE id = $3`,
		enabled, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set rule enabled %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("rule not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) UpdateRuleThresholds(ctx context.Context, id string, min, max, threshold float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE quality_rules SET min = $1, max = $2, threshold = $3, updated_at = $4 WHERE id = $5`,
		min, max, threshold, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update rule thresholds %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("rule not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) CreateViolation(ctx context.Context, v *model.Violation) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO violations (id, entity_id, rule_id, field, observed, expected, severity, review, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		v.ID, v.EntityID, v.RuleID, v.Field, v.Observed, v.Expected,
		string(v.Severity), string(v.Review), v.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert violation")
}

func (s *PostgresStore) GetViolation(ctx context.Context, id string) (*model.Violation, error) {
	var v model.Violation
	err := s.pool.QueryRow(ctx,
		`SELECT id, entity_id, rule_id, field, observed, expected, severity, review, created_at
		 FROM violations WHERE id = $1`, id,
	).Scan(&v.ID, &v.EntityID, &v.RuleID, &v.Field, &v.Observed, &v.Expected, &v.Severity, &v.Review, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get violation %s", id)
	}
	return &v, nil
}

func (s *PostgresStore) LatestViolation(ctx context.Context, entityID, ruleID, field string) (*model.Violation, error) {
	var v model.Violation
	err := s.pool.QueryRow(ctx,
		`SELECT id, entity_id, rule_id, field, observed, expected, severity, review, created_at
		 FROM violations WHERE entity_id = $1 AND rule_id = $2 AND field = $3
		 ORDER BY created_at DESC LIMIT 1`, entityID, ruleID, field,
	).Scan(&v.ID, &v.EntityID, &v.RuleID, &v.Field, &v.Observed, &v.Expected, &v.Severity, &v.Review, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: latest violation %s/%s", entityID, ruleID)
	}
	return &v, nil
}

func (s *PostgresStore) ListViolations(ctx context.Context, filter ViolationFilter) ([]model.Violation, error) {
	query := `SELECT id, entity_id, rule_id, field, observed, expected, severity, review, created_at
	          FROM violations WHERE true`
	args := []any{}
	argIdx := 1

	if filter.EntityID != "" {
		query += fmt.Sprintf(` AND entity_id = $%d`, argIdx)
		args = append(args, filter.EntityID)
		argIdx++
	}
	if filter.Severity != "" {
		query += fmt.Sprintf(` AND severity = $%d`, argIdx)
		args = append(args, string(filter.Severity))
		argIdx++
	}
	if filter.Review != "" {
		query += fmt.Sprintf(` AND review = $%d`, argIdx)
		args = append(args, string(filter.Review))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list violations")
	}
	defer rows.Close()

	var vs []model.Violation
	for rows.Next() {
		var v model.Violation
		if err := rows.Scan(&v.ID, &v.EntityID, &v.RuleID, &v.Field, &v.Observed, &v.Expected, &v.Severity, &v.Review, &v.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan violation")
		}
		vs = append(vs, v)
	}
	return vs, eris.Wrap(rows.Err(), "postgres: list violations iterate")
}

func (s *PostgresStore) UpdateViolationReview(ctx context.Context, id string, status model.ReviewStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE violations SET review = $1 WHERE id = $2`,
		string(status), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update violation review %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("violation not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) OpenCriticalCount(ctx context.Context, entityID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM violations
		 WHERE entity_id = $1 AND severity = $2 AND review = $3`,
		entityID, string(model.SeverityCritical), string(model.ReviewPending),
	).Scan(&count)
	return count, eris.Wrapf(err, "postgres: open critical count %s", entityID)
}

func (s *PostgresStore) SaveExecution(ctx context.Context, e *model.PipelineExecution) error {
	stagesJSON, err := json.Marshal(e.Stages)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal stages")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO executions (id, triggered_by, status, stages, started_at, ended_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   status = EXCLUDED.status, stages = EXCLUDED.stages, ended_at = EXCLUDED.ended_at`,
		e.ID, e.TriggeredBy, string(e.Status), stagesJSON, e.StartedAt, e.EndedAt,
	)
	return eris.Wrap(err, "postgres: save execution")
}

func (s *PostgresStore) ListExecutions(ctx context.Context, limit int) ([]model.PipelineExecution, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, triggered_by, status, stages, started_at, ended_at
		 FROM executions ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list executions")
	}
	defer rows.Close()

	var execs []model.PipelineExecution
	for rows.Next() {
		var e model.PipelineExecution
		var stagesJSON []byte
		var endedAt *time.Time
		if err := rows.Scan(&e.ID, &e.TriggeredBy, &e.Status, &stagesJSON, &e.StartedAt, &endedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan execution")
		}
		if err := json.Unmarshal(stagesJSON, &e.Stages); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal stages")
		}
		if endedAt != nil {
			e.EndedAt = *endedAt
		}
		execs = append(execs, e)
	}
	return execs, eris.Wrap(rows.Err(), "postgres: list executions iterate")
}

func collectEntitiesPgx(rows pgx.Rows) ([]model.CanonicalEntity, error) {
	var ents []model.CanonicalEntity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan entity")
		}
		ents = append(ents, *e)
	}
	return ents, eris.Wrap(rows.Err(), "postgres: entities iterate")
}

func scanConflictPgx(row scannable) (*model.ConflictRecord, error) {
	var cr model.ConflictRecord
	var candsJSON []byte
	if err := row.Scan(&cr.ID, &cr.EntityID, &cr.Field, &candsJSON, &cr.WinningSource, &cr.Rule, &cr.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(candsJSON, &cr.Candidates); err != nil {
		return nil, eris.Wrap(err, "unmarshal candidates")
	}
	return &cr, nil
}

func collectRulesPgx(rows pgx.Rows) ([]model.QualityRule, error) {
	var rules []model.QualityRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan rule")
		}
		rules = append(rules, *r)
	}
	return rules, eris.Wrap(rows.Err(), "postgres: rules iterate")
}
