// Command seed populates a development database with two users, a project,
// and a handful of tasks. Safe to run repeatedly: existing rows are kept.
package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"task-manager/backend/internal/config"
	"task-manager/backend/internal/db"
	projectdomain "task-manager/backend/internal/project/domain"
	projectrepo "task-manager/backend/internal/project/repository"
	"task-manager/backend/internal/security"
	taskdomain "task-manager/backend/internal/task/domain"
	taskrepo "task-manager/backend/internal/task/repository"
	userdomain "task-manager/backend/internal/user/domain"
	userrepo "task-manager/backend/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users := userrepo.NewPostgresRepository(database)
	projects := projectrepo.NewPostgresRepository(database)
	tasks := taskrepo.NewPostgresRepository(database)
	hasher := security.NewHasher(cfg.BcryptCost)

	admin := seedUser(ctx, users, hasher, "Ada", "Admin", "admin@taskman.dev", "Adm1n!pass", userdomain.RoleAdmin)
	member := seedUser(ctx, users, hasher, "Devon", "Dev", "dev@taskman.dev", "D3vel0p!pass", userdomain.RoleUser)

	project := seedProject(ctx, projects, "Onboarding", admin.ID, member.ID)
	seedTasks(ctx, tasks, project.ID, admin.ID)

	log.Println("seed complete")
}

func seedUser(ctx context.Context, users *userrepo.PostgresRepository, hasher *security.Hasher, first, last, email, password, role string) *userdomain.User {
	existing, err := users.GetByEmail(ctx, email)
	if err != nil {
		log.Fatalf("seed: lookup %s: %v", email, err)
	}
	if existing != nil {
		log.Printf("seed: user %s already exists", email)
		return existing
	}
	hash, err := hasher.Hash([]byte(password))
	if err != nil {
		log.Fatalf("seed: hash password: %v", err)
	}
	now := time.Now().UTC()
	u := &userdomain.User{
		ID:           uuid.New().String(),
		FirstName:    first,
		LastName:     last,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := users.Create(ctx, u); err != nil {
		log.Fatalf("seed: create %s: %v", email, err)
	}
	if err := users.AssignRole(ctx, u.ID, role); err != nil {
		log.Fatalf("seed: assign role %s to %s: %v", role, email, err)
	}
	log.Printf("seed: created user %s (%s)", email, role)
	return u
}

func seedProject(ctx context.Context, projects *projectrepo.PostgresRepository, name, ownerID, memberID string) *projectdomain.Project {
	list, err := projects.ListByUser(ctx, ownerID)
	if err != nil {
		log.Fatalf("seed: list projects: %v", err)
	}
	for _, p := range list {
		if p.Name == name {
			log.Printf("seed: project %q already exists", name)
			return p
		}
	}
	p := &projectdomain.Project{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := projects.Create(ctx, p); err != nil {
		log.Fatalf("seed: create project: %v", err)
	}
	members := []*projectdomain.Member{
		{ID: uuid.New().String(), ProjectID: p.ID, UserID: ownerID, Role: projectdomain.RoleOwner},
		{ID: uuid.New().String(), ProjectID: p.ID, UserID: memberID, Role: projectdomain.RoleMember},
	}
	for _, m := range members {
		if err := projects.AddMember(ctx, m); err != nil {
			log.Fatalf("seed: add member: %v", err)
		}
	}
	log.Printf("seed: created project %q", name)
	return p
}

func seedTasks(ctx context.Context, tasks *taskrepo.PostgresRepository, projectID, creatorID string) {
	existing, err := tasks.ListByProject(ctx, projectID)
	if err != nil {
		log.Fatalf("seed: list tasks: %v", err)
	}
	if len(existing) > 0 {
		log.Printf("seed: project already has %d tasks", len(existing))
		return
	}
	due := time.Now().UTC().Add(7 * 24 * time.Hour)
	samples := []struct {
		title, description, status string
		due                        *time.Time
	}{
		{"Set up local environment", "Clone the repo and run the migrations.", taskdomain.StatusDone, nil},
		{"Read the API docs", "Walk through the auth and project endpoints.", taskdomain.StatusInProgress, nil},
		{"Ship first change", "Pick a starter issue and open a pull request.", taskdomain.StatusPending, &due},
	}
	now := time.Now().UTC()
	for _, s := range samples {
		t := &taskdomain.Task{
			ID:          uuid.New().String(),
			ProjectID:   projectID,
			Title:       s.title,
			Description: s.description,
			Status:      s.status,
			DueDate:     s.due,
			CreatedBy:   creatorID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tasks.Create(ctx, t); err != nil {
			log.Fatalf("seed: create task %q: %v", s.title, err)
		}
	}
	log.Printf("seed: created %d tasks", len(samples))
}
