package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/inovalupa/govtech-analyzer/internal/core"
	"github.com/inovalupa/govtech-analyzer/internal/logger"
	"github.com/inovalupa/govtech-analyzer/internal/models"
)

const (
	UsersKey    = "govtech_users"
	ProjectsKey = "govtech_projects"
)

// Snapshot is the state reconstructed at boot.
type Snapshot struct {
	Users    []models.User
	Projects []models.AnalysisProject
}

// Store serializes the users and projects collections to a key-value backend,
// one JSON array per collection, always written whole.
type Store struct {
	kv        core.KVStore
	bootstrap models.User
	log       *logger.Logger
}

// New returns a store that seeds bootstrap as the protected administrator.
// bootstrap.ID is forced to models.BootstrapAdminID.
func New(kv core.KVStore, bootstrap models.User, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	bootstrap.ID = models.BootstrapAdminID
	bootstrap.Role = models.RoleAdmin
	if bootstrap.Name == "" {
		bootstrap.Name = "Administrador Master"
	}
	return &Store{kv: kv, bootstrap: bootstrap, log: log.With("component", "store")}
}

// Load rebuilds both collections. Corrupt or missing data never fails the load;
// only backend read/write failures do.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	users, err := s.loadUsers(ctx)
	if err != nil {
		return nil, err
	}
	projects, err := s.loadProjects(ctx)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Users: users, Projects: projects}, nil
}

func (s *Store) loadUsers(ctx context.Context) ([]models.User, error) {
	raw, found, err := s.kv.Get(ctx, UsersKey)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}

	var users []models.User
	seed := !found
	if found {
		if err := json.Unmarshal([]byte(raw), &users); err != nil {
			s.log.Error("stored users are corrupt, reseeding bootstrap admin", "key", UsersKey, "error", err)
			users, seed = nil, true
		}
	}

	if !hasBootstrap(users) {
		users = append([]models.User{s.bootstrap}, users...)
		seed = true
	}
	if seed {
		s.log.Info("seeding bootstrap admin", "id", s.bootstrap.ID)
		if err := s.SaveUsers(ctx, users); err != nil {
			return nil, err
		}
	}
	return users, nil
}

func (s *Store) loadProjects(ctx context.Context) ([]models.AnalysisProject, error) {
	raw, found, err := s.kv.Get(ctx, ProjectsKey)
	if err != nil {
		return nil, fmt.Errorf("load projects: %w", err)
	}
	if !found {
		return []models.AnalysisProject{}, nil
	}
	var projects []models.AnalysisProject
	if err := json.Unmarshal([]byte(raw), &projects); err != nil {
		s.log.Error("stored projects are corrupt, starting empty", "key", ProjectsKey, "error", err)
		return []models.AnalysisProject{}, nil
	}
	for i := range projects {
		if projects[i].Files == nil {
			projects[i].Files = []models.ProjectFile{}
		}
		if projects[i].History == nil {
			projects[i].History = []models.AuditEntry{}
		}
	}
	return projects, nil
}

func (s *Store) SaveUsers(ctx context.Context, users []models.User) error {
	return s.save(ctx, UsersKey, users)
}

func (s *Store) SaveProjects(ctx context.Context, projects []models.AnalysisProject) error {
	return s.save(ctx, ProjectsKey, projects)
}

func (s *Store) save(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, string(b)); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func hasBootstrap(users []models.User) bool {
	for _, u := range users {
		if u.ID == models.BootstrapAdminID {
			return true
		}
	}
	return false
}
