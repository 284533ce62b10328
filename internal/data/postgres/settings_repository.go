package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/bkcjanta/roi-project/internal/platform/persistence"
	"github.com/bkcjanta/roi-project/internal/settings"
)

// SettingsRepository implements the settings.Repository interface for PostgreSQL
type SettingsRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewSettingsRepository creates a new PostgreSQL settings repository
func NewSettingsRepository(logger *slog.Logger, db *persistence.PostgresDB) settings.Repository {
	return &SettingsRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *SettingsRepository) WithTx(tx pgx.Tx) settings.Repository {
	return &SettingsRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// GetAll returns every stored setting as key/value pairs
func (r *SettingsRepository) GetAll(ctx context.Context) (map[string]string, error) {
	rows, err := r.querier.Query(ctx, `SELECT key, value FROM system_settings`)
	if err != nil {
		r.logger.Error("Failed to load settings", "error", err)
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over settings: %w", err)
	}

	return values, nil
}

// Set upserts one setting
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO system_settings (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`

	_, err := r.querier.Exec(ctx, query, key, value)
	if err != nil {
		r.logger.Error("Failed to set setting", "key", key, "error", err)
		return fmt.Errorf("failed to set setting: %w", err)
	}

	return nil
}
