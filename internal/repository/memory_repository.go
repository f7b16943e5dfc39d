package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rongwang/savings-circles/internal/circle"
	"github.com/rongwang/savings-circles/internal/models"
)

type memoryCircle struct {
	mu            sync.Mutex // held for the whole of an UpdateCircle
	info          models.Circle
	members       []models.CircleMember
	approvals     []models.AmountApproval
	contributions []models.Contribution
}

// MemoryRepository implements the Repository interface in process memory.
// It is used by tests and by the DB_DRIVER=memory deployment mode.
type MemoryRepository struct {
	mu         sync.RWMutex
	users      map[string]models.User
	emails     map[string]string
	circles    map[string]*memoryCircle
	nextMember int64
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:   map[string]models.User{},
		emails:  map[string]string{},
		circles: map[string]*memoryCircle{},
	}
}

// User repository methods
func (r *MemoryRepository) CreateUser(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.emails[user.Email]; taken {
		return ErrConflict
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if _, taken := r.users[user.ID]; taken {
		return ErrConflict
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	r.users[user.ID] = *user
	r.emails[user.Email] = user.ID
	return nil
}

func (r *MemoryRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.emails[email]
	if !ok {
		return nil, nil
	}
	user := r.users[id]
	return &user, nil
}

func (r *MemoryRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func (r *MemoryRepository) GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var users []models.User
	for _, id := range ids {
		if user, ok := r.users[id]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}

// Circle repository methods
func (r *MemoryRepository) CreateCircle(ctx context.Context, c *circle.Circle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.circles[c.ID()]; exists {
		return ErrConflict
	}

	stored := &memoryCircle{}
	r.store(stored, c)
	r.circles[c.ID()] = stored
	return nil
}

func (r *MemoryRepository) LoadCircle(ctx context.Context, circleID, period string) (*circle.Circle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.circles[circleID]
	if !ok {
		return nil, nil
	}
	return r.restore(stored, period), nil
}

func (r *MemoryRepository) UpdateCircle(
	ctx context.Context,
	circleID string,
	period string,
	fn func(c *circle.Circle) error,
) error {
	r.mu.RLock()
	stored, ok := r.circles[circleID]
	r.mu.RUnlock()
	if !ok {
		return circle.ErrUnknownCircle
	}

	stored.mu.Lock()
	defer stored.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.RLock()
	c := r.restore(stored, period)
	r.mu.RUnlock()

	if err := fn(c); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, recorded := range c.Recorded() {
		for _, existing := range stored.contributions {
			if existing.UserID == recorded.UserID && existing.Period == recorded.Period {
				return circle.ErrDuplicatePeriod
			}
		}
	}
	r.store(stored, c)
	return nil
}

func (r *MemoryRepository) GetUserCircleIDs(ctx context.Context, userID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found []models.Circle
	for _, stored := range r.circles {
		for _, m := range stored.members {
			if m.UserID == userID {
				found = append(found, stored.info)
				break
			}
		}
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].CreatedAt.Equal(found[j].CreatedAt) {
			return found[i].ID < found[j].ID
		}
		return found[i].CreatedAt.Before(found[j].CreatedAt)
	})

	ids := make([]string, len(found))
	for i, info := range found {
		ids[i] = info.ID
	}
	return ids, nil
}

// Contribution repository methods
func (r *MemoryRepository) ListContributions(ctx context.Context, circleID string) ([]models.Contribution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.circles[circleID]
	if !ok {
		return nil, nil
	}

	// contributions are kept in insertion order; newest first with a stable
	// tie-break on insertion order for equal timestamps
	history := make([]models.Contribution, len(stored.contributions))
	for i, c := range stored.contributions {
		history[len(history)-1-i] = c
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].RecordedAt.After(history[j].RecordedAt)
	})
	return history, nil
}

// restore copies stored state into a fresh aggregate. Callers hold r.mu.
func (r *MemoryRepository) restore(stored *memoryCircle, period string) *circle.Circle {
	var current []models.Contribution
	for _, c := range stored.contributions {
		if c.Period == period {
			current = append(current, c)
		}
	}
	return circle.Restore(stored.info, stored.members, stored.approvals, period, current)
}

// store writes the aggregate back. Callers hold r.mu for writing.
func (r *MemoryRepository) store(stored *memoryCircle, c *circle.Circle) {
	stored.info = c.Info()

	members := c.Members()
	for i := range members {
		if members[i].ID == 0 {
			r.nextMember++
			members[i].ID = r.nextMember
		}
	}
	stored.members = members

	stored.approvals = nil
	if p := c.Proposal(); p != nil {
		stored.approvals = p.Approvals()
	}

	stored.contributions = append(stored.contributions, c.Recorded()...)
}
