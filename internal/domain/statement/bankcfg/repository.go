package bankcfg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// DB is the subset of pgxpool.Pool the repository needs. Satisfied by
// *pgxpool.Pool and by pgxmock in tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ErrConfigNotFound is returned when no config row exists for a bank code.
var ErrConfigNotFound = errors.New("bank parser config not found")

// PostgresRepository persists administrator-managed parser configs and field
// mappings. Superseding always writes a new version row; history is never
// mutated.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository creates a config repository backed by Postgres.
func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// synonymsJSON is the jsonb shape stored for column synonyms.
type synonymsJSON map[string][]string

// SaveConfig inserts a new version of a bank's parser config and deactivates
// any previously active version in the same transaction.
func (r *PostgresRepository) SaveConfig(ctx context.Context, cfg ParserConfig) (ParserConfig, error) {
	code := strings.ToUpper(strings.TrimSpace(cfg.BankCode))
	if code == "" {
		return ParserConfig{}, fmt.Errorf("bank code is required")
	}

	syn := make(synonymsJSON, len(cfg.ColumnSynonyms))
	for col, list := range cfg.ColumnSynonyms {
		syn[string(col)] = list
	}
	synBytes, err := json.Marshal(syn)
	if err != nil {
		return ParserConfig{}, fmt.Errorf("encode column synonyms: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return ParserConfig{}, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE bank_parser_configs SET is_active = false, updated_at = now()
		 WHERE bank_code = $1 AND is_active = true`, code); err != nil {
		return ParserConfig{}, err
	}

	saved := cfg
	saved.BankCode = code
	saved.IsActive = true
	err = tx.QueryRow(ctx, `
		INSERT INTO bank_parser_configs (
			bank_code, display_name, priority, parser_type,
			detection_keywords, header_keywords, column_synonyms, date_formats,
			version, is_active
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			COALESCE((SELECT MAX(version) FROM bank_parser_configs WHERE bank_code = $1), 0) + 1,
			true
		)
		RETURNING version, created_at, updated_at`,
		code, cfg.DisplayName, cfg.Priority, string(cfg.ParserType),
		cfg.DetectionKeywords, cfg.HeaderKeywords, synBytes, cfg.DateFormats,
	).Scan(&saved.Version, &saved.CreatedAt, &saved.UpdatedAt)
	if err != nil {
		return ParserConfig{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return ParserConfig{}, err
	}
	return saved, nil
}

// GetConfig returns the active config for a bank code.
func (r *PostgresRepository) GetConfig(ctx context.Context, bankCode string) (ParserConfig, error) {
	row := r.db.QueryRow(ctx, `
		SELECT bank_code, display_name, priority, parser_type,
			detection_keywords, header_keywords, column_synonyms, date_formats,
			version, is_active, created_at, updated_at
		FROM bank_parser_configs
		WHERE bank_code = $1 AND is_active = true`,
		strings.ToUpper(strings.TrimSpace(bankCode)))

	cfg, err := scanConfig(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ParserConfig{}, ErrConfigNotFound
	}
	return cfg, err
}

// ListActiveConfigs returns every active config, priority order.
func (r *PostgresRepository) ListActiveConfigs(ctx context.Context) ([]ParserConfig, error) {
	rows, err := r.db.Query(ctx, `
		SELECT bank_code, display_name, priority, parser_type,
			detection_keywords, header_keywords, column_synonyms, date_formats,
			version, is_active, created_at, updated_at
		FROM bank_parser_configs
		WHERE is_active = true
		ORDER BY priority, bank_code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []ParserConfig
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

// DeactivateConfig retires the active version of a bank's config. The row is
// kept for history.
func (r *PostgresRepository) DeactivateConfig(ctx context.Context, bankCode string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE bank_parser_configs SET is_active = false, updated_at = now()
		 WHERE bank_code = $1 AND is_active = true`,
		strings.ToUpper(strings.TrimSpace(bankCode)))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConfigNotFound
	}
	return tx.Commit(ctx)
}

// SetFieldMapping writes a new version of a (bank code, field key) mapping and
// deactivates the prior version.
func (r *PostgresRepository) SetFieldMapping(ctx context.Context, m FieldMapping) (FieldMapping, error) {
	code := strings.ToUpper(strings.TrimSpace(m.BankCode))
	if code == "" || m.FieldKey == "" {
		return FieldMapping{}, fmt.Errorf("bank code and field key are required")
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return FieldMapping{}, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE bank_field_mappings SET is_active = false
		 WHERE bank_code = $1 AND field_key = $2 AND is_active = true`,
		code, m.FieldKey); err != nil {
		return FieldMapping{}, err
	}

	saved := m
	saved.BankCode = code
	saved.IsActive = true
	err = tx.QueryRow(ctx, `
		INSERT INTO bank_field_mappings (bank_code, field_key, value, version, is_active)
		VALUES (
			$1, $2, $3,
			COALESCE((SELECT MAX(version) FROM bank_field_mappings WHERE bank_code = $1 AND field_key = $2), 0) + 1,
			true
		)
		RETURNING id, version, created_at`,
		code, m.FieldKey, m.Value,
	).Scan(&saved.ID, &saved.Version, &saved.CreatedAt)
	if err != nil {
		return FieldMapping{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return FieldMapping{}, err
	}
	return saved, nil
}

// ListActiveFieldMappings returns every active field mapping.
func (r *PostgresRepository) ListActiveFieldMappings(ctx context.Context) ([]FieldMapping, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, bank_code, field_key, value, version, is_active, created_at
		FROM bank_field_mappings
		WHERE is_active = true
		ORDER BY bank_code, field_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMappings(rows)
}

// ListFieldMappingHistory returns every version for a bank, newest first.
func (r *PostgresRepository) ListFieldMappingHistory(ctx context.Context, bankCode string) ([]FieldMapping, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, bank_code, field_key, value, version, is_active, created_at
		FROM bank_field_mappings
		WHERE bank_code = $1
		ORDER BY field_key, version DESC`,
		strings.ToUpper(strings.TrimSpace(bankCode)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMappings(rows)
}

func collectMappings(rows pgx.Rows) ([]FieldMapping, error) {
	var out []FieldMapping
	for rows.Next() {
		var m FieldMapping
		if err := rows.Scan(&m.ID, &m.BankCode, &m.FieldKey, &m.Value,
			&m.Version, &m.IsActive, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanConfig(row pgx.Row) (ParserConfig, error) {
	var (
		cfg        ParserConfig
		parserType string
		synBytes   []byte
	)
	err := row.Scan(
		&cfg.BankCode, &cfg.DisplayName, &cfg.Priority, &parserType,
		&cfg.DetectionKeywords, &cfg.HeaderKeywords, &synBytes, &cfg.DateFormats,
		&cfg.Version, &cfg.IsActive, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		return ParserConfig{}, err
	}
	cfg.ParserType = ParserType(parserType)

	var syn synonymsJSON
	if err := json.Unmarshal(synBytes, &syn); err != nil {
		return ParserConfig{}, fmt.Errorf("decode column synonyms: %w", err)
	}
	cfg.ColumnSynonyms = make(map[Column][]string, len(syn))
	for col, list := range syn {
		cfg.ColumnSynonyms[Column(col)] = list
	}
	return cfg, nil
}
