package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cleanplan-dev/cleaning-planner/backend/internal/domain"
)

func (r *Repository) GetCleanerByID(id int64) (*domain.Cleaner, error) {
	query := `
		SELECT full_name, role, default_start_time, is_active, created_at, version
		FROM cleaners WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	cleaner := &domain.Cleaner{
		ID: id,
	}

	dst := []any{&cleaner.FullName, &cleaner.Role, &cleaner.DefaultStartTime, &cleaner.IsActive, &cleaner.CreatedAt, &cleaner.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: 保洁员 %d 不在花名册中", domain.ErrNotFound, id)
		}
		return nil, err
	}

	return cleaner, nil
}

func (r *Repository) GetAllCleaners() ([]*domain.Cleaner, error) {
	query := `
		SELECT id, full_name, role, default_start_time, is_active, created_at, version
		FROM cleaners ORDER BY id
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cleaners := []*domain.Cleaner{}
	for rows.Next() {
		cleaner := &domain.Cleaner{}
		dst := []any{&cleaner.ID, &cleaner.FullName, &cleaner.Role, &cleaner.DefaultStartTime, &cleaner.IsActive, &cleaner.CreatedAt, &cleaner.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		cleaners = append(cleaners, cleaner)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return cleaners, nil
}

func (r *Repository) CreateCleaner(cleaner *domain.Cleaner) error {
	query := `
		INSERT INTO cleaners (full_name, role, default_start_time, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, version
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	args := []any{cleaner.FullName, cleaner.Role, cleaner.DefaultStartTime, cleaner.IsActive}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&cleaner.ID, &cleaner.CreatedAt, &cleaner.Version); err != nil {
		return err
	}

	return nil
}
