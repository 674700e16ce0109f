package timergroup

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcdev12/countdown/go/internal/models"
	"github.com/mcdev12/countdown/go/internal/sqlutil"
	"github.com/mcdev12/countdown/go/internal/timergroup/db"
)

// Repository implements timer group persistence on Postgres
type Repository struct {
	db      *sql.DB
	queries *db.Queries
}

// NewRepository creates a new Postgres timer group repository
func NewRepository(database *sql.DB) *Repository {
	return &Repository{
		db:      database,
		queries: db.New(database),
	}
}

// GetByCode retrieves a timer group by its public code
func (r *Repository) GetByCode(ctx context.Context, code string) (*models.TimerGroup, error) {
	row, err := r.queries.GetTimerGroup(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get timer group: %w", err)
	}
	return dbTimerGroupToModel(row)
}

// Create inserts a new timer group. A duplicate code yields ErrCodeTaken.
func (r *Repository) Create(ctx context.Context, group models.TimerGroup) (*models.TimerGroup, error) {
	stateJSON, err := json.Marshal(group.State)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal timer state: %w", err)
	}

	row, err := r.queries.CreateTimerGroup(ctx, db.CreateTimerGroupParams{
		Code:      group.Code,
		OwnerID:   group.OwnerID,
		State:     stateJSON,
		CreatedAt: group.CreatedAt,
	})
	if err != nil {
		if sqlutil.IsUniqueViolation(err) {
			return nil, ErrCodeTaken
		}
		return nil, fmt.Errorf("failed to create timer group: %w", err)
	}
	return dbTimerGroupToModel(row)
}

// UpdateState locks the row, lets mutate compute the next state and writes it back.
// An error from mutate rolls the transaction back and is returned unwrapped.
func (r *Repository) UpdateState(ctx context.Context, code string, mutate StateMutator) (*models.TimerGroup, error) {
	var updated *models.TimerGroup
	err := sqlutil.Run(ctx, r.db, r.queries.WithTx, func(q *db.Queries) error {
		row, err := q.GetTimerGroupForUpdate(ctx, code)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to lock timer group: %w", err)
		}

		current, err := dbTimerGroupToModel(row)
		if err != nil {
			return err
		}

		next, err := mutate(*current)
		if err != nil {
			return err
		}

		stateJSON, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal timer state: %w", err)
		}

		row, err = q.UpdateTimerGroupState(ctx, db.UpdateTimerGroupStateParams{
			Code:      code,
			State:     stateJSON,
			UpdatedAt: next.UpdatedAt,
		})
		if err != nil {
			return fmt.Errorf("failed to update timer state: %w", err)
		}

		updated, err = dbTimerGroupToModel(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func dbTimerGroupToModel(row db.TimerGroup) (*models.TimerGroup, error) {
	var state models.TimerState
	if err := json.Unmarshal(row.State, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal timer state: %w", err)
	}

	return &models.TimerGroup{
		Code:      row.Code,
		OwnerID:   row.OwnerID,
		State:     state.Normalize(),
		CreatedAt: models.TruncateTime(row.CreatedAt),
		UpdatedAt: models.TruncateTime(row.UpdatedAt),
	}, nil
}
