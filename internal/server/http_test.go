package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	identityservice "task-manager/backend/internal/identity/service"
	"task-manager/backend/internal/policy/engine"
	projectdomain "task-manager/backend/internal/project/domain"
	projectservice "task-manager/backend/internal/project/service"
	"task-manager/backend/internal/security"
	sessiondomain "task-manager/backend/internal/session/domain"
	sessionservice "task-manager/backend/internal/session/service"
	taskdomain "task-manager/backend/internal/task/domain"
	taskservice "task-manager/backend/internal/task/service"
	userdomain "task-manager/backend/internal/user/domain"
)

// In-memory repositories backing a full router for end-to-end flows.

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*sessiondomain.Session
}

func (m *memSessionRepo) Create(_ context.Context, s *sessiondomain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memSessionRepo) GetByID(_ context.Context, id string) (*sessiondomain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (m *memSessionRepo) GetByRefreshHash(_ context.Context, hash string) (*sessiondomain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if !s.Revoked && s.RefreshCredentialHash == hash {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memSessionRepo) ListActiveByOwner(_ context.Context, ownerID string) ([]*sessiondomain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*sessiondomain.Session
	for _, s := range m.sessions {
		if s.OwnerID == ownerID && !s.Revoked {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memSessionRepo) CountActiveByOwner(ctx context.Context, ownerID string) (int64, error) {
	list, err := m.ListActiveByOwner(ctx, ownerID)
	return int64(len(list)), err
}

func (m *memSessionRepo) UpdateAccessHash(_ context.Context, id, hash string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.AccessCredentialHash = hash
		return 1, nil
	}
	return 0, nil
}

func (m *memSessionRepo) UpdateRefreshHash(_ context.Context, id, hash string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.RefreshCredentialHash = hash
		return 1, nil
	}
	return 0, nil
}

func (m *memSessionRepo) Touch(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.LastAccessedAt = at
	}
	return nil
}

func (m *memSessionRepo) Revoke(_ context.Context, id, reason string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok && !s.Revoked {
		t := at
		s.Revoked = true
		s.RevokedAt = &t
		s.RevokedReason = reason
	}
	return nil
}

func (m *memSessionRepo) RevokeAllByOwner(_ context.Context, ownerID, reason string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.OwnerID == ownerID && !s.Revoked {
			t := at
			s.Revoked = true
			s.RevokedAt = &t
			s.RevokedReason = reason
		}
	}
	return nil
}

func (m *memSessionRepo) DeleteByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memSessionRepo) DeleteRefreshExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if s.RefreshExpiresAt.Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*userdomain.User
	roles map[string][]string
}

func (m *memUserRepo) GetByID(_ context.Context, id string) (*userdomain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *memUserRepo) GetByEmail(_ context.Context, email string) (*userdomain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memUserRepo) Create(_ context.Context, u *userdomain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUserRepo) Update(_ context.Context, u *userdomain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUserRepo) GetRoles(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.roles[userID]...), nil
}

func (m *memUserRepo) AssignRole(_ context.Context, userID, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[userID] = append(m.roles[userID], role)
	return nil
}

type memProjectRepo struct {
	mu       sync.Mutex
	projects map[string]*projectdomain.Project
	members  map[string]*projectdomain.Member
}

func (m *memProjectRepo) Create(_ context.Context, p *projectdomain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.projects[p.ID] = &cp
	return nil
}

func (m *memProjectRepo) GetByID(_ context.Context, id string) (*projectdomain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.projects[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *memProjectRepo) ListByUser(_ context.Context, userID string) ([]*projectdomain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*projectdomain.Project
	for _, mem := range m.members {
		if mem.UserID == userID {
			if p, ok := m.projects[mem.ProjectID]; ok {
				cp := *p
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

func (m *memProjectRepo) Update(_ context.Context, p *projectdomain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.projects[p.ID]; ok {
		cur.Name = p.Name
	}
	return nil
}

func (m *memProjectRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.projects, id)
	return nil
}

func (m *memProjectRepo) AddMember(_ context.Context, mem *projectdomain.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *mem
	m.members[mem.ProjectID+"/"+mem.UserID] = &cp
	return nil
}

func (m *memProjectRepo) RemoveMember(_ context.Context, projectID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.members, projectID+"/"+userID)
	return nil
}

func (m *memProjectRepo) GetMemberRole(_ context.Context, projectID, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mem, ok := m.members[projectID+"/"+userID]; ok {
		return mem.Role, nil
	}
	return "", nil
}

func (m *memProjectRepo) ListMembers(_ context.Context, projectID string) ([]*projectdomain.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*projectdomain.Member
	for _, mem := range m.members {
		if mem.ProjectID == projectID {
			cp := *mem
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memTaskRepo struct {
	mu    sync.Mutex
	tasks map[string]*taskdomain.Task
}

func (m *memTaskRepo) Create(_ context.Context, t *taskdomain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *memTaskRepo) GetByID(_ context.Context, id string) (*taskdomain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (m *memTaskRepo) ListByProject(_ context.Context, projectID string) ([]*taskdomain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*taskdomain.Task
	for _, t := range m.tasks {
		if t.ProjectID == projectID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memTaskRepo) Update(_ context.Context, t *taskdomain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *memTaskRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, id)
	return nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("token provider: %v", err)
	}
	policy, err := engine.NewOPAEvaluator(context.Background())
	if err != nil {
		t.Fatalf("policy evaluator: %v", err)
	}

	userRepo := &memUserRepo{users: map[string]*userdomain.User{}, roles: map[string][]string{}}
	sessionRepo := &memSessionRepo{sessions: map[string]*sessiondomain.Session{}}
	projectRepo := &memProjectRepo{projects: map[string]*projectdomain.Project{}, members: map[string]*projectdomain.Member{}}
	taskRepo := &memTaskRepo{tasks: map[string]*taskdomain.Task{}}

	sessions := sessionservice.NewService(sessionRepo, 30*time.Minute, 24*time.Hour, 0)
	auth := identityservice.NewAuthService(userRepo, sessions, security.NewHasher(4), tokens)
	projects := projectservice.NewService(projectRepo, userRepo, policy)
	tasks := taskservice.NewService(taskRepo, projects)

	return NewRouter(Deps{
		Tokens:   tokens,
		Sessions: sessions,
		Auth:     auth,
		Projects: projects,
		Tasks:    tasks,
	})
}

func doJSON(r *gin.Engine, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

const e2ePassword = "Str0ng!password"

func registerAndLogin(t *testing.T, r *gin.Engine, email string) (access, refresh string) {
	t.Helper()
	w := doJSON(r, "POST", "/api/v1/auth/register", "", gin.H{
		"first_name": "Ada", "last_name": "Lovelace", "email": email, "password": e2ePassword,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(r, "POST", "/api/v1/auth/login", "", gin.H{"email": email, "password": e2ePassword})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	return body["access_token"].(string), body["refresh_token"].(string)
}

func TestAuthFlow(t *testing.T) {
	r := newTestRouter(t)
	access, refresh := registerAndLogin(t, r, "ada@example.com")

	// Authenticated profile lookup.
	w := doJSON(r, "GET", "/api/v1/auth/me", access, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me status = %d: %s", w.Code, w.Body.String())
	}
	if got := decode(t, w)["email"]; got != "ada@example.com" {
		t.Errorf("me email = %v", got)
	}

	// Refresh reissues access but returns the same refresh credential.
	w = doJSON(r, "POST", "/api/v1/auth/refresh", "", gin.H{"refresh_token": refresh})
	if w.Code != http.StatusOK {
		t.Fatalf("refresh status = %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["refresh_token"] != refresh {
		t.Error("refresh credential changed")
	}
	newAccess := body["access_token"].(string)

	// Logout kills the session; both credentials die with it.
	w = doJSON(r, "POST", "/api/v1/auth/logout", newAccess, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("logout status = %d: %s", w.Code, w.Body.String())
	}
	if w = doJSON(r, "GET", "/api/v1/auth/me", newAccess, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("me after logout status = %d, want 401", w.Code)
	}
	if w = doJSON(r, "POST", "/api/v1/auth/refresh", "", gin.H{"refresh_token": refresh}); w.Code != http.StatusUnauthorized {
		t.Errorf("refresh after logout status = %d, want 401", w.Code)
	}
}

func TestSessionRoutes(t *testing.T) {
	r := newTestRouter(t)
	access1, _ := registerAndLogin(t, r, "ada@example.com")

	// Second login for the same user: log in again without re-registering.
	w := doJSON(r, "POST", "/api/v1/auth/login", "", gin.H{"email": "ada@example.com", "password": e2ePassword})
	if w.Code != http.StatusOK {
		t.Fatalf("second login status = %d", w.Code)
	}

	w = doJSON(r, "GET", "/api/v1/sessions", access1, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("sessions status = %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	sessions := body["sessions"].([]interface{})
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}

	// Revoke the other session by id.
	var otherID string
	for _, raw := range sessions {
		s := raw.(map[string]interface{})
		if s["current"] != true {
			otherID = s["id"].(string)
		}
	}
	if otherID == "" {
		t.Fatal("no non-current session found")
	}
	if w = doJSON(r, "DELETE", "/api/v1/sessions/"+otherID, access1, nil); w.Code != http.StatusOK {
		t.Fatalf("revoke status = %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(r, "GET", "/api/v1/sessions", access1, nil)
	if got := len(decode(t, w)["sessions"].([]interface{})); got != 1 {
		t.Errorf("sessions after revoke = %d, want 1", got)
	}

	// Foreign or unknown session ids are not found.
	if w = doJSON(r, "DELETE", "/api/v1/sessions/nonexistent", access1, nil); w.Code != http.StatusNotFound {
		t.Errorf("revoke unknown status = %d, want 404", w.Code)
	}
}

func TestLogoutAllRevokesEverySession(t *testing.T) {
	r := newTestRouter(t)
	access1, refresh1 := registerAndLogin(t, r, "ada@example.com")
	w := doJSON(r, "POST", "/api/v1/auth/login", "", gin.H{"email": "ada@example.com", "password": e2ePassword})
	access2 := decode(t, w)["access_token"].(string)

	if w = doJSON(r, "POST", "/api/v1/auth/logout-all", access2, nil); w.Code != http.StatusOK {
		t.Fatalf("logout-all status = %d", w.Code)
	}
	for _, tok := range []string{access1, access2} {
		if w = doJSON(r, "GET", "/api/v1/auth/me", tok, nil); w.Code != http.StatusUnauthorized {
			t.Errorf("me status = %d, want 401", w.Code)
		}
	}
	if w = doJSON(r, "POST", "/api/v1/auth/refresh", "", gin.H{"refresh_token": refresh1}); w.Code != http.StatusUnauthorized {
		t.Errorf("refresh status = %d, want 401", w.Code)
	}
}

func TestProjectAndTaskFlow(t *testing.T) {
	r := newTestRouter(t)
	ownerTok, _ := registerAndLogin(t, r, "owner@example.com")
	memberTok, _ := registerAndLogin(t, r, "member@example.com")

	// Owner creates a project.
	w := doJSON(r, "POST", "/api/v1/projects", ownerTok, gin.H{"name": "Apollo"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create project status = %d: %s", w.Code, w.Body.String())
	}
	projectID := decode(t, w)["id"].(string)

	// Non-member cannot see it.
	if w = doJSON(r, "GET", "/api/v1/projects/"+projectID, memberTok, nil); w.Code != http.StatusForbidden {
		t.Fatalf("stranger get status = %d, want 403", w.Code)
	}

	// Owner adds the second user as MEMBER; they can now view and add tasks.
	memberID := func() string {
		w := doJSON(r, "GET", "/api/v1/auth/me", memberTok, nil)
		return decode(t, w)["id"].(string)
	}()
	w = doJSON(r, "POST", "/api/v1/projects/"+projectID+"/members", ownerTok, gin.H{"user_id": memberID, "role": "MEMBER"})
	if w.Code != http.StatusCreated {
		t.Fatalf("add member status = %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(r, "POST", "/api/v1/projects/"+projectID+"/tasks", memberTok, gin.H{"title": "Write docs"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create task status = %d: %s", w.Code, w.Body.String())
	}
	task := decode(t, w)
	if task["status"] != "PENDING" {
		t.Errorf("task status = %v, want PENDING", task["status"])
	}
	taskID := task["id"].(string)

	// Member moves the task along but cannot delete it.
	w = doJSON(r, "PUT", "/api/v1/projects/"+projectID+"/tasks/"+taskID, memberTok, gin.H{"status": "IN_PROGRESS"})
	if w.Code != http.StatusOK {
		t.Fatalf("update task status = %d: %s", w.Code, w.Body.String())
	}
	if w = doJSON(r, "DELETE", "/api/v1/projects/"+projectID+"/tasks/"+taskID, memberTok, nil); w.Code != http.StatusForbidden {
		t.Errorf("member delete task status = %d, want 403", w.Code)
	}
	if w = doJSON(r, "DELETE", "/api/v1/projects/"+projectID+"/tasks/"+taskID, ownerTok, nil); w.Code != http.StatusOK {
		t.Errorf("owner delete task status = %d", w.Code)
	}

	// Member cannot delete the project; owner can.
	if w = doJSON(r, "DELETE", "/api/v1/projects/"+projectID, memberTok, nil); w.Code != http.StatusForbidden {
		t.Errorf("member delete project status = %d, want 403", w.Code)
	}
	if w = doJSON(r, "DELETE", "/api/v1/projects/"+projectID, ownerTok, nil); w.Code != http.StatusOK {
		t.Errorf("owner delete project status = %d", w.Code)
	}
}

func TestDuplicateRegistrationConflict(t *testing.T) {
	r := newTestRouter(t)
	registerAndLogin(t, r, "ada@example.com")
	w := doJSON(r, "POST", "/api/v1/auth/register", "", gin.H{
		"first_name": "Grace", "last_name": "Hopper", "email": "ada@example.com", "password": e2ePassword,
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}
