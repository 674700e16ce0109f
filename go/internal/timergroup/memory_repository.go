package timergroup

import (
	"context"

	"github.com/mcdev12/countdown/go/internal/models"
	"github.com/puzpuzpuz/xsync/v3"
)

// MemoryRepository keeps timer groups in process memory.
// Used for local development and tests.
type MemoryRepository struct {
	groups *xsync.MapOf[string, models.TimerGroup]
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		groups: xsync.NewMapOf[string, models.TimerGroup](),
	}
}

func (r *MemoryRepository) GetByCode(ctx context.Context, code string) (*models.TimerGroup, error) {
	group, ok := r.groups.Load(code)
	if !ok {
		return nil, ErrNotFound
	}
	return cloneGroup(group), nil
}

func (r *MemoryRepository) Create(ctx context.Context, group models.TimerGroup) (*models.TimerGroup, error) {
	group.State = group.State.Normalize()
	group.CreatedAt = models.TruncateTime(group.CreatedAt)
	group.UpdatedAt = group.CreatedAt

	if _, loaded := r.groups.LoadOrStore(group.Code, group); loaded {
		return nil, ErrCodeTaken
	}
	return cloneGroup(group), nil
}

// UpdateState applies mutate atomically with respect to other writers of the same code.
func (r *MemoryRepository) UpdateState(ctx context.Context, code string, mutate StateMutator) (*models.TimerGroup, error) {
	var (
		result    models.TimerGroup
		mutateErr error
		found     bool
	)

	r.groups.Compute(code, func(current models.TimerGroup, loaded bool) (models.TimerGroup, bool) {
		if !loaded {
			return current, true
		}
		found = true

		next, err := mutate(*cloneGroup(current))
		if err != nil {
			mutateErr = err
			return current, false
		}

		current.State = next.Normalize()
		current.UpdatedAt = current.State.UpdatedAt
		result = current
		return current, false
	})

	if !found {
		return nil, ErrNotFound
	}
	if mutateErr != nil {
		return nil, mutateErr
	}
	return cloneGroup(result), nil
}

// Len returns the number of stored groups
func (r *MemoryRepository) Len() int {
	return r.groups.Size()
}

func cloneGroup(g models.TimerGroup) *models.TimerGroup {
	out := g
	out.State = g.State.Normalize()
	return &out
}
