package repository

import (
	"context"
	"fmt"
	"sync"

	"otp_expense_tracker/internal/model"

	"github.com/google/uuid"
)

// MemoryUserRepository keeps users in process memory.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*model.User
	byPhone map[string]string
}

// NewMemoryUserRepository creates a new, empty MemoryUserRepository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    make(map[string]*model.User),
		byPhone: make(map[string]string),
	}
}

func (r *MemoryUserRepository) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byPhone[user.Phone]; ok {
		return fmt.Errorf("failed to create user: %w", ErrDuplicate)
	}
	if r.emailTakenLocked(user.Email, "") {
		return fmt.Errorf("failed to create user: %w", ErrDuplicate)
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	r.byID[user.ID] = user.Clone()
	r.byPhone[user.Phone] = user.ID
	return nil
}

func (r *MemoryUserRepository) FindByPhone(_ context.Context, phone string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byPhone[phone]
	if !ok {
		return nil, nil
	}
	return r.byID[id].Clone(), nil
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.byID[id].Clone(), nil
}

// Update replaces the stored user. Phone is immutable.
func (r *MemoryUserRepository) Update(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[user.ID]
	if !ok {
		return fmt.Errorf("failed to update user %s: %w", user.ID, ErrNotFound)
	}
	if r.emailTakenLocked(user.Email, user.ID) {
		return fmt.Errorf("failed to update user: %w", ErrDuplicate)
	}
	updated := user.Clone()
	updated.Phone = existing.Phone
	updated.CreatedAt = existing.CreatedAt
	r.byID[user.ID] = updated
	return nil
}

func (r *MemoryUserRepository) emailTakenLocked(email *string, exceptID string) bool {
	if email == nil {
		return false
	}
	for id, u := range r.byID {
		if id != exceptID && u.Email != nil && *u.Email == *email {
			return true
		}
	}
	return false
}
