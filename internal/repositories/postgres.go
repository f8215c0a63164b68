package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgxv5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vidfriends/videosync/internal/db"
	"github.com/vidfriends/videosync/internal/models"
)

// PostgresVideoRepository provides PostgreSQL-backed persistence for workspace videos.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

// ListByOwner returns the owner's videos, newest first.
func (r *PostgresVideoRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Record, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+selectColumns+`
        FROM videos
        WHERE workspace_owner_id = $1
        ORDER BY created_at DESC, id
    `, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", mapPgError(err))
	}
	defer rows.Close()

	records := []models.Record{}
	for rows.Next() {
		row := newScannedRow()
		if err := rows.Scan(row.dest()...); err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		records = append(records, row.record())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", mapPgError(err))
	}

	return records, nil
}

// FindByKey fetches a single video.
func (r *PostgresVideoRepository) FindByKey(ctx context.Context, key string) (models.Record, error) {
	rec, _, err := r.findWithOwner(ctx, key)
	return rec, err
}

// OwnerOf returns the workspace owner of key.
func (r *PostgresVideoRepository) OwnerOf(ctx context.Context, key string) (string, error) {
	_, owner, err := r.findWithOwner(ctx, key)
	return owner, err
}

func (r *PostgresVideoRepository) findWithOwner(ctx context.Context, key string) (models.Record, string, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Record{}, "", fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := newScannedRow()
	err = conn.QueryRow(ctx, `
        SELECT `+selectColumns+`
        FROM videos
        WHERE id = $1
    `, key).Scan(row.dest()...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Record{}, "", ErrNotFound
		}
		return models.Record{}, "", fmt.Errorf("select video: %w", mapPgError(err))
	}

	return row.record(), row.ownerID, nil
}

// Create inserts a new video for ownerID under a generated id.
func (r *PostgresVideoRepository) Create(ctx context.Context, ownerID string, fields models.Fields) (models.Record, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return models.Record{}, fmt.Errorf("%w: owner is required", ErrConstraintViolation)
	}

	columns := []string{"id", "workspace_owner_id"}
	args := []any{uuid.NewString(), ownerID}
	for _, field := range fields {
		c, err := writableColumn(field.Name)
		if err != nil {
			return models.Record{}, err
		}
		value, err := columnValue(c, field.Value)
		if err != nil {
			return models.Record{}, err
		}
		columns = append(columns, c.name)
		args = append(args, value)
	}

	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := `INSERT INTO videos (` + strings.Join(columns, ", ") + `)
        VALUES (` + strings.Join(placeholders, ", ") + `)
        RETURNING ` + selectColumns

	row := newScannedRow()
	err := crdbpgx.ExecuteTx(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, query, args...).Scan(row.dest()...)
	})
	if err != nil {
		return models.Record{}, fmt.Errorf("insert video: %w", mapPgError(err))
	}

	return row.record(), nil
}

// ApplyMutation writes updates to the video identified by key, stamps its
// updated_at version marker and returns the stored record.
func (r *PostgresVideoRepository) ApplyMutation(ctx context.Context, key string, updates models.Fields) (models.Record, error) {
	if len(updates) == 0 {
		return models.Record{}, fmt.Errorf("%w: no fields to update", ErrInvalidField)
	}

	assignments := make([]string, 0, len(updates)+1)
	args := []any{key}
	for _, field := range updates {
		c, err := writableColumn(field.Name)
		if err != nil {
			return models.Record{}, err
		}
		value, err := columnValue(c, field.Value)
		if err != nil {
			return models.Record{}, err
		}
		args = append(args, value)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", c.name, len(args)))
	}
	assignments = append(assignments, "updated_at = NOW()")

	query := `UPDATE videos
        SET ` + strings.Join(assignments, ", ") + `
        WHERE id = $1
        RETURNING ` + selectColumns

	row := newScannedRow()
	err := crdbpgx.ExecuteTx(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, query, args...).Scan(row.dest()...)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Record{}, ErrNotFound
		}
		return models.Record{}, fmt.Errorf("update video: %w", mapPgError(err))
	}

	return row.record(), nil
}

// Delete removes the video identified by key.
func (r *PostgresVideoRepository) Delete(ctx context.Context, key string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM videos WHERE id = $1`, key)
	if err != nil {
		return fmt.Errorf("delete video: %w", mapPgError(err))
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// mapPgError attaches the repository sentinel matching a server error code.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch {
	case pgErr.Code == "42501":
		return fmt.Errorf("%w: %s", ErrPermissionDenied, pgErr.Message)
	case pgErr.Code == "23505":
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.Message)
	case strings.HasPrefix(pgErr.Code, "23"):
		return fmt.Errorf("%w: %s", ErrConstraintViolation, pgErr.Message)
	default:
		return err
	}
}

var _ VideoRepository = (*PostgresVideoRepository)(nil)
