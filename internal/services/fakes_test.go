package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/inovalupa/govtech-analyzer/internal/config"
	"github.com/inovalupa/govtech-analyzer/internal/core"
	"github.com/inovalupa/govtech-analyzer/internal/models"
)

var errBackend = errors.New("backend unavailable")

var (
	adminUser = models.User{ID: models.BootstrapAdminID, Name: "Administrador Master", Email: "admin", Password: "123456", Role: models.RoleAdmin}
	ana       = models.User{ID: "u1", Name: "Ana", Email: "ana@x", Password: "secret1", Role: models.RoleUser}
	bruno     = models.User{ID: "u2", Name: "Bruno", Email: "bruno@x", Password: "secret2", Role: models.RoleUser}
)

// memStore records every saved collection and can be told to fail.
type memStore struct {
	mu       sync.Mutex
	fail     bool
	users    []models.User
	projects []models.AnalysisProject
	saves    int
}

func (m *memStore) SaveUsers(_ context.Context, users []models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errBackend
	}
	m.users = users
	m.saves++
	return nil
}

func (m *memStore) SaveProjects(_ context.Context, projects []models.AnalysisProject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errBackend
	}
	m.projects = projects
	m.saves++
	return nil
}

type fakeExtractor struct {
	text  string
	err   error
	calls int
}

func (f *fakeExtractor) ExtractText(_ context.Context, _ []byte, _ string) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeObjects struct {
	mu      sync.Mutex
	fail    bool
	objects map[string][]byte
	deleted []string
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string][]byte{}}
}

func (f *fakeObjects) UploadFile(_ context.Context, key string, data io.Reader, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", errBackend
	}
	b, _ := io.ReadAll(data)
	f.objects[key] = b
	return "https://bucket.s3.sa-east-1.amazonaws.com/" + key, nil
}

func (f *fakeObjects) GetFile(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return bytes.Clone(b), nil
}

func (f *fakeObjects) DeleteFile(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

// recordingLLM captures requests and answers with a canned reply.
type recordingLLM struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []core.GenerateRequest
}

func (r *recordingLLM) provider() core.LLMProvider {
	return core.GenerateFunc(func(_ context.Context, req core.GenerateRequest) (string, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.requests = append(r.requests, req)
		return r.reply, r.err
	})
}

func (r *recordingLLM) last(t *testing.T) core.GenerateRequest {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.requests) == 0 {
		t.Fatal("no request was sent to the model")
	}
	return r.requests[len(r.requests)-1]
}

func (r *recordingLLM) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func testSpecialists(t *testing.T) *config.Specialists {
	t.Helper()
	s, err := config.LoadSpecialists("")
	if err != nil {
		t.Fatalf("load specialists: %v", err)
	}
	return s
}

const analysisJSON = `{"classification":"Storage","summary":"Aquisição de storage","keywords":["storage","backup"],"requisitosTecnicos":["100TB"],"tecnologiasSugeridas":["FlashSystem 5200"],"slaExigido":"24x7","riscosContratuais":"multa","fabricantesAderentes":["IBM"],"atestadosExigidos":["atestado"],"pontosAtencaoEspecialista":"Atenção ao prazo"}`
