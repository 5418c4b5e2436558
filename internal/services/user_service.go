package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/inovalupa/govtech-analyzer/internal/logger"
	"github.com/inovalupa/govtech-analyzer/internal/models"
)

const minPasswordLen = 6

// UsersStore persists the whole user collection.
type UsersStore interface {
	SaveUsers(ctx context.Context, users []models.User) error
}

type UserService struct {
	mu    sync.RWMutex
	users []models.User
	store UsersStore
	log   *logger.Logger
}

// NewUserService takes ownership of the loaded collection.
func NewUserService(users []models.User, store UsersStore, log *logger.Logger) *UserService {
	if log == nil {
		log = logger.Nop()
	}
	return &UserService{users: users, store: store, log: log.With("component", "users")}
}

// NewUser is the provisioning draft.
type NewUser struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

// Login scans for an exact email/password pair. Unknown user and wrong password
// are indistinguishable to the caller.
func (s *UserService) Login(email, password string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email && u.Password == password {
			return u, nil
		}
	}
	return models.User{}, ErrInvalidCredentials
}

func (s *UserService) AddUser(ctx context.Context, draft NewUser) (models.User, error) {
	draft.Name = strings.TrimSpace(draft.Name)
	draft.Email = strings.TrimSpace(draft.Email)
	if draft.Role == "" {
		draft.Role = models.RoleUser
	}
	if draft.Name == "" || draft.Email == "" || draft.Password == "" {
		return models.User{}, fmt.Errorf("%w: name, email and password are required", ErrInvalidUser)
	}
	if len([]rune(draft.Password)) < minPasswordLen {
		return models.User{}, ErrWeakPassword
	}
	if draft.Role != models.RoleAdmin && draft.Role != models.RoleUser {
		return models.User{}, fmt.Errorf("%w: unknown role %q", ErrInvalidUser, draft.Role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, draft.Email) {
			return models.User{}, ErrDuplicateEmail
		}
	}

	u := models.User{
		ID:       uuid.NewString(),
		Name:     draft.Name,
		Email:    draft.Email,
		Password: draft.Password,
		Role:     draft.Role,
	}
	next := make([]models.User, len(s.users), len(s.users)+1)
	copy(next, s.users)
	next = append(next, u)

	if err := s.store.SaveUsers(ctx, next); err != nil {
		return models.User{}, err
	}
	s.users = next
	s.log.Info("user added", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// DeleteUser removes a non-bootstrap account. The removal only happens when
// confirmed is true.
func (s *UserService) DeleteUser(ctx context.Context, id string, confirmed bool) error {
	if id == models.BootstrapAdminID {
		s.log.Warn("refused to remove bootstrap admin")
		return ErrBootstrapAdmin
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, u := range s.users {
		if u.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrUserNotFound
	}
	if !confirmed {
		return ErrConfirmationRequired
	}

	next := make([]models.User, 0, len(s.users)-1)
	next = append(next, s.users[:idx]...)
	next = append(next, s.users[idx+1:]...)

	if err := s.store.SaveUsers(ctx, next); err != nil {
		return err
	}
	s.users = next
	s.log.Info("user removed", "user_id", id)
	return nil
}

// List returns every user without credentials.
func (s *UserService) List() []models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.User, len(s.users))
	for i, u := range s.users {
		out[i] = u.Public()
	}
	return out
}

func (s *UserService) Get(id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return models.User{}, ErrUserNotFound
}
