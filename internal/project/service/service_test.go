package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"task-manager/backend/internal/policy/engine"
	"task-manager/backend/internal/project/domain"
)

type fakeProjectRepo struct {
	mu       sync.Mutex
	projects map[string]*domain.Project
	members  map[string]*domain.Member // key projectID+"/"+userID
}

func newFakeProjectRepo() *fakeProjectRepo {
	return &fakeProjectRepo{
		projects: make(map[string]*domain.Project),
		members:  make(map[string]*domain.Member),
	}
}

func memberKey(projectID, userID string) string { return projectID + "/" + userID }

func (f *fakeProjectRepo) Create(_ context.Context, p *domain.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.projects[p.ID] = &cp
	return nil
}

func (f *fakeProjectRepo) GetByID(_ context.Context, id string) (*domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProjectRepo) ListByUser(_ context.Context, userID string) ([]*domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Project
	for _, m := range f.members {
		if m.UserID == userID {
			if p, ok := f.projects[m.ProjectID]; ok {
				cp := *p
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

func (f *fakeProjectRepo) Update(_ context.Context, p *domain.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.projects[p.ID]; ok {
		cur.Name = p.Name
	}
	return nil
}

func (f *fakeProjectRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.projects, id)
	for k, m := range f.members {
		if m.ProjectID == id {
			delete(f.members, k)
		}
	}
	return nil
}

func (f *fakeProjectRepo) AddMember(_ context.Context, m *domain.Member) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *m
	f.members[memberKey(m.ProjectID, m.UserID)] = &cp
	return nil
}

func (f *fakeProjectRepo) RemoveMember(_ context.Context, projectID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members, memberKey(projectID, userID))
	return nil
}

func (f *fakeProjectRepo) GetMemberRole(_ context.Context, projectID, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.members[memberKey(projectID, userID)]; ok {
		return m.Role, nil
	}
	return "", nil
}

func (f *fakeProjectRepo) ListMembers(_ context.Context, projectID string) ([]*domain.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Member
	for _, m := range f.members {
		if m.ProjectID == projectID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeUserRoles struct{ roles map[string][]string }

func (f *fakeUserRoles) GetRoles(_ context.Context, userID string) ([]string, error) {
	return f.roles[userID], nil
}

func newTestService(t *testing.T) (*Service, *fakeProjectRepo) {
	t.Helper()
	repo := newFakeProjectRepo()
	policy, err := engine.NewOPAEvaluator(context.Background())
	if err != nil {
		t.Fatalf("policy evaluator: %v", err)
	}
	roles := &fakeUserRoles{roles: map[string][]string{
		"owner": {"USER"}, "member": {"USER"}, "stranger": {"USER"}, "root": {"ADMIN"},
	}}
	return NewService(repo, roles, policy), repo
}

func TestCreate_CallerBecomesOwner(t *testing.T) {
	svc, repo := newTestService(t)
	p, err := svc.Create(context.Background(), "owner", "Apollo")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	role, _ := repo.GetMemberRole(context.Background(), p.ID, "owner")
	if role != domain.RoleOwner {
		t.Errorf("creator role = %q, want OWNER", role)
	}
}

func TestGet_RequiresMembership(t *testing.T) {
	svc, _ := newTestService(t)
	p, _ := svc.Create(context.Background(), "owner", "Apollo")

	if _, err := svc.Get(context.Background(), "owner", p.ID); err != nil {
		t.Fatalf("owner Get: %v", err)
	}
	if _, err := svc.Get(context.Background(), "stranger", p.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger Get err = %v, want ErrForbidden", err)
	}
	// Global ADMIN bypasses membership.
	if _, err := svc.Get(context.Background(), "root", p.ID); err != nil {
		t.Fatalf("global admin Get: %v", err)
	}
}

func TestUpdate_MemberForbidden(t *testing.T) {
	svc, _ := newTestService(t)
	p, _ := svc.Create(context.Background(), "owner", "Apollo")
	if err := svc.AddMember(context.Background(), "owner", p.ID, "member", domain.RoleMember); err != nil {
		t.Fatalf("AddMember: %v", err)
	}

	if _, err := svc.Update(context.Background(), "member", p.ID, "Artemis"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("member Update err = %v, want ErrForbidden", err)
	}
	got, err := svc.Update(context.Background(), "owner", p.ID, "Artemis")
	if err != nil {
		t.Fatalf("owner Update: %v", err)
	}
	if got.Name != "Artemis" {
		t.Errorf("name = %q", got.Name)
	}
}

func TestDelete_OnlyOwner(t *testing.T) {
	svc, repo := newTestService(t)
	p, _ := svc.Create(context.Background(), "owner", "Apollo")
	if err := svc.AddMember(context.Background(), "owner", p.ID, "member", domain.RoleAdmin); err != nil {
		t.Fatalf("AddMember: %v", err)
	}

	if err := svc.Delete(context.Background(), "member", p.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("admin Delete err = %v, want ErrForbidden", err)
	}
	if err := svc.Delete(context.Background(), "owner", p.ID); err != nil {
		t.Fatalf("owner Delete: %v", err)
	}
	if len(repo.projects) != 0 {
		t.Error("project not deleted")
	}
}

func TestAddMember_InvalidRole(t *testing.T) {
	svc, _ := newTestService(t)
	p, _ := svc.Create(context.Background(), "owner", "Apollo")
	err := svc.AddMember(context.Background(), "owner", p.ID, "member", "SUPERUSER")
	if !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("err = %v, want ErrInvalidRole", err)
	}
}

func TestRemoveMember_LastOwnerProtected(t *testing.T) {
	svc, _ := newTestService(t)
	p, _ := svc.Create(context.Background(), "owner", "Apollo")

	err := svc.RemoveMember(context.Background(), "owner", p.ID, "owner")
	if !errors.Is(err, ErrLastOwner) {
		t.Fatalf("err = %v, want ErrLastOwner", err)
	}

	// With a second owner the first may leave.
	if err := svc.AddMember(context.Background(), "owner", p.ID, "member", domain.RoleOwner); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if err := svc.RemoveMember(context.Background(), "owner", p.ID, "owner"); err != nil {
		t.Fatalf("RemoveMember with co-owner: %v", err)
	}
}

func TestList_OnlyMemberships(t *testing.T) {
	svc, _ := newTestService(t)
	mine, _ := svc.Create(context.Background(), "owner", "Apollo")
	if _, err := svc.Create(context.Background(), "stranger", "Gemini"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.List(context.Background(), "owner")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].ID != mine.ID {
		t.Fatalf("got %d projects, want only own membership", len(got))
	}
}
