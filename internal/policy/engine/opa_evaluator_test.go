package engine

import (
	"context"
	"testing"
)

func newEvaluator(t *testing.T) *OPAEvaluator {
	t.Helper()
	e, err := NewOPAEvaluator(context.Background())
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	return e
}

func TestAllow(t *testing.T) {
	e := newEvaluator(t)
	cases := []struct {
		name string
		in   AccessInput
		want bool
	}{
		{"owner deletes project", AccessInput{ProjectRole: "OWNER", Action: "project.delete"}, true},
		{"owner manages members", AccessInput{ProjectRole: "OWNER", Action: "project.manage_members"}, true},
		{"admin updates project", AccessInput{ProjectRole: "ADMIN", Action: "project.update"}, true},
		{"admin cannot delete project", AccessInput{ProjectRole: "ADMIN", Action: "project.delete"}, false},
		{"member views project", AccessInput{ProjectRole: "MEMBER", Action: "project.view"}, true},
		{"member creates task", AccessInput{ProjectRole: "MEMBER", Action: "task.create"}, true},
		{"member cannot delete task", AccessInput{ProjectRole: "MEMBER", Action: "task.delete"}, false},
		{"member cannot manage members", AccessInput{ProjectRole: "MEMBER", Action: "project.manage_members"}, false},
		{"non-member denied", AccessInput{Action: "project.view"}, false},
		{"global admin bypasses membership", AccessInput{GlobalRoles: []string{"ADMIN"}, Action: "project.delete"}, true},
		{"global user role grants nothing", AccessInput{GlobalRoles: []string{"USER"}, Action: "project.view"}, false},
		{"owner allows any action", AccessInput{ProjectRole: "OWNER", Action: "anything.else"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.Allow(context.Background(), tc.in)
			if err != nil {
				t.Fatalf("Allow: %v", err)
			}
			if got != tc.want {
				t.Errorf("Allow(%+v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestHealthCheck(t *testing.T) {
	e := newEvaluator(t)
	if err := e.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}
