package app

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	appMiddleware "github.com/inovalupa/govtech-analyzer/internal/api/middlewares"
	"github.com/inovalupa/govtech-analyzer/internal/config"
	"github.com/inovalupa/govtech-analyzer/internal/core"
	"github.com/inovalupa/govtech-analyzer/internal/core/kv"
	"github.com/inovalupa/govtech-analyzer/internal/logger"
	"github.com/inovalupa/govtech-analyzer/internal/models"
	"github.com/inovalupa/govtech-analyzer/internal/services"
	"github.com/inovalupa/govtech-analyzer/internal/session"
	"github.com/inovalupa/govtech-analyzer/internal/store"
)

const analysisJSON = `{"classification":"Storage","summary":"Aquisição de storage","keywords":["storage"],"requisitosTecnicos":["100TB"],"tecnologiasSugeridas":["FlashSystem"],"slaExigido":"24x7","riscosContratuais":"multa","fabricantesAderentes":["IBM"],"atestadosExigidos":["atestado"],"pontosAtencaoEspecialista":"Atenção ao prazo"}`

// scriptedLLM answers analysis requests with analysisJSON and everything else
// with a fixed markdown reply. When gate is set every call blocks on it.
type scriptedLLM struct {
	mu      sync.Mutex
	calls   int
	entered chan struct{}
	gate    chan struct{}
}

func (s *scriptedLLM) Generate(ctx context.Context, req core.GenerateRequest) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.gate != nil {
		s.entered <- struct{}{}
		select {
		case <-s.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if len(req.ResponseSchema) > 0 {
		return analysisJSON, nil
	}
	return "## Resposta\nConteúdo gerado.", nil
}

func (s *scriptedLLM) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type staticExtractor string

func (e staticExtractor) ExtractText(context.Context, []byte, string) (string, error) {
	return string(e), nil
}

type testServer struct {
	handler  http.Handler
	sessions *session.Registry
	llm      *scriptedLLM
}

func newTestServer(t *testing.T, llm *scriptedLLM) *testServer {
	t.Helper()
	ctx := context.Background()
	log := logger.Nop()

	st := store.New(kv.NewMemoryStore(), models.User{Email: "admin", Password: "123456"}, log)
	snap, err := st.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	specialists, err := config.LoadSpecialists("")
	if err != nil {
		t.Fatal(err)
	}

	sessions := session.NewRegistry()
	extractor := staticExtractor("Pregão eletrônico para aquisição de storage.")
	users := services.NewUserService(snap.Users, st, log)
	projects := services.NewProjectService(snap.Projects, st, specialists, log)
	advisor := services.NewAdvisor(llm, specialists, log)

	cfg := &config.Config{JWTSecret: "test-secret", MaxUploadMB: 1, CORSOrigins: []string{"http://localhost:5173"}}
	h := NewRouter(cfg, log, Services{
		Specialists: specialists,
		Sessions:    sessions,
		Users:       users,
		Projects:    projects,
		Uploads:     services.NewUploadService(projects, advisor, extractor, nil, log),
		Proposals:   services.NewProposalService(projects, advisor, extractor, log),
		Chat:        services.NewChatService(projects, advisor, sessions, log),
	})
	return &testServer{handler: h, sessions: sessions, llm: llm}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) upload(t *testing.T, path, token, filename, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/login", "", map[string]string{"email": email, "password": password})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: %d %s", email, rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	decode(t, rec, &resp)
	return resp.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d: %s", rec.Code, want, rec.Body.String())
	}
}

// newUserWithProject provisions a regular user and opens a project for them.
func newUserWithProject(t *testing.T, s *testServer) (token, projectID string) {
	t.Helper()
	admin := s.login(t, "admin", "123456")
	expectStatus(t, s.do(t, http.MethodPost, "/api/users", admin, services.NewUser{Name: "Ana", Email: "ana@x", Password: "secret1"}), http.StatusCreated)

	token = s.login(t, "ana@x", "secret1")
	rec := s.do(t, http.MethodPost, "/api/projects", token, map[string]string{"name": "Pregão 12/2026"})
	expectStatus(t, rec, http.StatusCreated)
	var resp struct {
		Project models.AnalysisProject `json:"project"`
		Session session.State          `json:"session"`
	}
	decode(t, rec, &resp)
	if resp.Session.ActiveProjectID != resp.Project.ID {
		t.Fatalf("new project not selected: %+v", resp.Session)
	}
	return token, resp.Project.ID
}

func TestLoginSessionLogout(t *testing.T) {
	s := newTestServer(t, &scriptedLLM{})

	rec := s.do(t, http.MethodPost, "/api/login", "", map[string]string{"email": "admin", "password": "wrong"})
	expectStatus(t, rec, http.StatusUnauthorized)

	token := s.login(t, "admin", "123456")
	rec = s.do(t, http.MethodGet, "/api/session", token, nil)
	expectStatus(t, rec, http.StatusOK)
	var resp struct {
		Session session.State `json:"session"`
	}
	decode(t, rec, &resp)
	if resp.Session.Tab != session.TabAdmin || resp.Session.User.Password != "" {
		t.Fatalf("admin session = %+v", resp.Session)
	}

	expectStatus(t, s.do(t, http.MethodPut, "/api/session/tab", token, map[string]string{"tab": "nope"}), http.StatusBadRequest)
	expectStatus(t, s.do(t, http.MethodPut, "/api/session/tab", token, map[string]string{"tab": "chat"}), http.StatusOK)

	expectStatus(t, s.do(t, http.MethodPost, "/api/logout", token, nil), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodGet, "/api/session", token, nil), http.StatusUnauthorized)
}

func TestUserAdministration(t *testing.T) {
	s := newTestServer(t, &scriptedLLM{})
	admin := s.login(t, "admin", "123456")

	cases := []struct {
		name string
		body services.NewUser
		want int
	}{
		{"created", services.NewUser{Name: "Ana", Email: "ana@x", Password: "secret1"}, http.StatusCreated},
		{"duplicate email", services.NewUser{Name: "Ana 2", Email: "ANA@x", Password: "secret1"}, http.StatusConflict},
		{"weak password", services.NewUser{Name: "Bia", Email: "bia@x", Password: "123"}, http.StatusBadRequest},
		{"missing name", services.NewUser{Email: "c@x", Password: "secret1"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			expectStatus(t, s.do(t, http.MethodPost, "/api/users", admin, tc.body), tc.want)
		})
	}

	var users []models.User
	rec := s.do(t, http.MethodGet, "/api/users", admin, nil)
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &users)
	if len(users) != 2 {
		t.Fatalf("users = %+v", users)
	}
	var anaID string
	for _, u := range users {
		if u.Password != "" {
			t.Fatalf("password leaked for %s", u.Email)
		}
		if u.Email == "ana@x" {
			anaID = u.ID
		}
	}

	ana := s.login(t, "ana@x", "secret1")
	expectStatus(t, s.do(t, http.MethodGet, "/api/users", ana, nil), http.StatusForbidden)

	expectStatus(t, s.do(t, http.MethodDelete, "/api/users/"+models.BootstrapAdminID+"?confirm=true", admin, nil), http.StatusForbidden)
	expectStatus(t, s.do(t, http.MethodDelete, "/api/users/"+anaID, admin, nil), http.StatusPreconditionRequired)
	expectStatus(t, s.do(t, http.MethodDelete, "/api/users/missing?confirm=true", admin, nil), http.StatusNotFound)
	expectStatus(t, s.do(t, http.MethodDelete, "/api/users/"+anaID+"?confirm=true", admin, nil), http.StatusNoContent)

	// the removed user's session is gone with the account
	expectStatus(t, s.do(t, http.MethodGet, "/api/session", ana, nil), http.StatusUnauthorized)
}

func TestProjectWorkflow(t *testing.T) {
	s := newTestServer(t, &scriptedLLM{})
	token, id := newUserWithProject(t, s)
	base := "/api/projects/" + id

	rec := s.upload(t, base+"/files", token, "tr.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", []byte("x"))
	expectStatus(t, rec, http.StatusUnsupportedMediaType)
	if s.llm.count() != 0 {
		t.Fatal("rejected upload reached the model")
	}

	rec = s.upload(t, base+"/files", token, "tr.pdf", "application/pdf", []byte("%PDF-1.4"))
	expectStatus(t, rec, http.StatusCreated)
	var up services.UploadResult
	decode(t, rec, &up)
	if len(up.Project.Files) != 1 || models.Text(up.Project.Classification) != "Storage" {
		t.Fatalf("upload result = %+v", up.Project)
	}
	if !strings.HasPrefix(up.Project.History[0].Title, "Análise Inicial: tr.pdf") {
		t.Fatalf("history = %+v", up.Project.History)
	}

	rec = s.do(t, http.MethodPost, base+"/documents", token, map[string]string{"prompt": "Declaração de inexistência de fatos impeditivos"})
	expectStatus(t, rec, http.StatusCreated)
	expectStatus(t, s.do(t, http.MethodPost, base+"/documents", token, map[string]string{"prompt": "  "}), http.StatusBadRequest)

	expectStatus(t, s.do(t, http.MethodPut, base+"/proposal-template", token, map[string]string{"template": "# Minha proposta"}), http.StatusOK)
	rec = s.do(t, http.MethodGet, base+"/proposal-template", token, nil)
	expectStatus(t, rec, http.StatusOK)
	var tpl struct {
		Template string `json:"template"`
		Custom   bool   `json:"custom"`
	}
	decode(t, rec, &tpl)
	if !tpl.Custom || tpl.Template != "# Minha proposta" {
		t.Fatalf("template = %+v", tpl)
	}

	rec = s.do(t, http.MethodPost, base+"/proposal", token, map[string]any{"company": map[string]string{"name": "VS Data"}})
	expectStatus(t, rec, http.StatusCreated)
	var entry models.AuditEntry
	decode(t, rec, &entry)
	if entry.Type != models.EntryProposal || entry.Title != "Proposta Final - VS Data" {
		t.Fatalf("proposal entry = %+v", entry)
	}

	expectStatus(t, s.do(t, http.MethodPost, base+"/history", token, map[string]string{"type": "OUTRO", "title": "x"}), http.StatusBadRequest)

	var history []models.AuditEntry
	rec = s.do(t, http.MethodGet, base+"/history", token, nil)
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &history)
	if len(history) != 3 {
		t.Fatalf("history = %+v", history)
	}

	rec = s.do(t, http.MethodPost, "/api/proposals/export", token, map[string]string{"markdown": entry.Content, "companyName": "VS Data"})
	expectStatus(t, rec, http.StatusOK)
	if got := rec.Header().Get("Content-Type"); got != services.WordContentType {
		t.Fatalf("content type = %q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename=Proposta_VSDATA_VS_Data.doc` {
		t.Fatalf("disposition = %q", got)
	}
	if !strings.Contains(rec.Body.String(), "<h2>Resposta</h2>") {
		t.Fatalf("export body = %q", rec.Body.String())
	}
}

func TestProjectsAreScopedToOwner(t *testing.T) {
	s := newTestServer(t, &scriptedLLM{})
	_, id := newUserWithProject(t, s)

	admin := s.login(t, "admin", "123456")
	expectStatus(t, s.do(t, http.MethodPost, "/api/users", admin, services.NewUser{Name: "Bruno", Email: "bruno@x", Password: "secret2"}), http.StatusCreated)
	bruno := s.login(t, "bruno@x", "secret2")

	expectStatus(t, s.do(t, http.MethodGet, "/api/projects/"+id, bruno, nil), http.StatusNotFound)
	expectStatus(t, s.do(t, http.MethodPost, "/api/projects/"+id+"/select", bruno, nil), http.StatusNotFound)
	expectStatus(t, s.do(t, http.MethodGet, "/api/projects/"+id, admin, nil), http.StatusOK)

	var list []models.AnalysisProject
	rec := s.do(t, http.MethodGet, "/api/projects", bruno, nil)
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &list)
	if len(list) != 0 {
		t.Fatalf("bruno sees %d projects", len(list))
	}
}

func TestChatRoundTripAndArchive(t *testing.T) {
	s := newTestServer(t, &scriptedLLM{})
	token, id := newUserWithProject(t, s)

	expectStatus(t, s.do(t, http.MethodPost, "/api/chat/archive", token, nil), http.StatusBadRequest)

	rec := s.do(t, http.MethodPost, "/api/chat", token, map[string]string{"message": "Qual o SLA?"})
	expectStatus(t, rec, http.StatusOK)
	var resp struct {
		Session session.State `json:"session"`
	}
	decode(t, rec, &resp)
	if len(resp.Session.Chat) != 2 || resp.Session.ChatLoading {
		t.Fatalf("chat = %+v", resp.Session)
	}

	rec = s.do(t, http.MethodPost, "/api/chat/archive", token, nil)
	expectStatus(t, rec, http.StatusCreated)
	var entry models.AuditEntry
	decode(t, rec, &entry)
	if entry.Type != models.EntryChatLog || !strings.Contains(entry.Content, "Qual o SLA?") {
		t.Fatalf("archived = %+v", entry)
	}

	rec = s.do(t, http.MethodGet, "/api/projects/"+id+"/history", token, nil)
	expectStatus(t, rec, http.StatusOK)
}

func TestConcurrentRequestsOnSameSessionAreRejected(t *testing.T) {
	cases := []struct {
		name string
		send func(t *testing.T, s *testServer, token, id string) *httptest.ResponseRecorder
	}{
		{"upload", func(t *testing.T, s *testServer, token, id string) *httptest.ResponseRecorder {
			return s.upload(t, "/api/projects/"+id+"/files", token, "tr.pdf", "application/pdf", []byte("%PDF"))
		}},
		{"chat", func(t *testing.T, s *testServer, token, id string) *httptest.ResponseRecorder {
			return s.do(t, http.MethodPost, "/api/chat", token, map[string]string{"message": "oi"})
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			llm := &scriptedLLM{}
			s := newTestServer(t, llm)
			token, id := newUserWithProject(t, s)

			llm.entered = make(chan struct{}, 1)
			llm.gate = make(chan struct{})

			first := make(chan *httptest.ResponseRecorder, 1)
			go func() { first <- tc.send(t, s, token, id) }()
			<-llm.entered

			expectStatus(t, tc.send(t, s, token, id), http.StatusConflict)
			if llm.count() != 1 {
				t.Fatalf("model calls = %d, want 1", llm.count())
			}

			close(llm.gate)
			rec := <-first
			if rec.Code != http.StatusOK && rec.Code != http.StatusCreated {
				t.Fatalf("first request: %d %s", rec.Code, rec.Body.String())
			}

			st, _ := s.sessions.Get(sessionOf(t, token))
			if st.Processing || st.ChatLoading {
				t.Fatalf("flags left set: %+v", st)
			}
		})
	}
}

func sessionOf(t *testing.T, token string) string {
	t.Helper()
	claims, err := appMiddleware.ParseToken([]byte("test-secret"), token)
	if err != nil {
		t.Fatal(err)
	}
	return claims.SessionID
}

func TestListSpecialists(t *testing.T) {
	s := newTestServer(t, &scriptedLLM{})
	token := s.login(t, "admin", "123456")

	rec := s.do(t, http.MethodGet, "/api/specialists", token, nil)
	expectStatus(t, rec, http.StatusOK)
	var list []struct {
		Key         string `json:"key"`
		DisplayName string `json:"displayName"`
		Default     bool   `json:"default"`
	}
	decode(t, rec, &list)
	if len(list) != 2 || list[0].Key != "general" || list[1].Key != "ibm_storage" {
		t.Fatalf("specialists = %+v", list)
	}
	if !list[0].Default || list[1].DisplayName == "" {
		t.Errorf("specialists = %+v", list)
	}
}

func TestDownloadWithoutArchiveIsNotFound(t *testing.T) {
	s := newTestServer(t, &scriptedLLM{})
	token, id := newUserWithProject(t, s)

	rec := s.upload(t, "/api/projects/"+id+"/files", token, "tr.pdf", "application/pdf", []byte("%PDF"))
	expectStatus(t, rec, http.StatusCreated)
	var up services.UploadResult
	decode(t, rec, &up)

	expectStatus(t, s.do(t, http.MethodGet, "/api/projects/"+id+"/files/"+up.File.ID, token, nil), http.StatusNotFound)
	expectStatus(t, s.do(t, http.MethodGet, "/api/projects/"+id+"/files/missing", token, nil), http.StatusNotFound)
}

func TestUploadKeepsSelectionMadeWhileProcessing(t *testing.T) {
	llm := &scriptedLLM{}
	s := newTestServer(t, llm)
	token, first := newUserWithProject(t, s)

	rec := s.do(t, http.MethodPost, "/api/projects", token, map[string]string{"name": "Pregão 13/2026"})
	expectStatus(t, rec, http.StatusCreated)
	var created struct {
		Project models.AnalysisProject `json:"project"`
	}
	decode(t, rec, &created)
	second := created.Project.ID

	llm.entered = make(chan struct{}, 1)
	llm.gate = make(chan struct{})
	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- s.upload(t, "/api/projects/"+first+"/files", token, "tr.pdf", "application/pdf", []byte("%PDF"))
	}()
	<-llm.entered

	// the user moves on to the other project while the first one is analysed
	expectStatus(t, s.do(t, http.MethodPost, "/api/projects/"+second+"/select", token, nil), http.StatusOK)
	close(llm.gate)
	expectStatus(t, <-done, http.StatusCreated)

	st, _ := s.sessions.Get(sessionOf(t, token))
	if st.ActiveProjectID != second || st.Processing {
		t.Fatalf("session after upload = %+v", st)
	}
}
