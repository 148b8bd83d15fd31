package audit

import "testing"

func TestParseRoute(t *testing.T) {
	cases := []struct {
		method, path string
		want         ActionResource
	}{
		{"POST", "/api/v1/auth/login", ActionResource{"login", "auth"}},
		{"POST", "/api/v1/auth/register", ActionResource{"register", "auth"}},
		{"POST", "/api/v1/auth/refresh", ActionResource{"refresh", "auth"}},
		{"POST", "/api/v1/auth/logout", ActionResource{"logout", "auth"}},
		{"POST", "/api/v1/auth/logout-all", ActionResource{"logout_all", "auth"}},
		{"GET", "/api/v1/sessions", ActionResource{"list", "session"}},
		{"DELETE", "/api/v1/sessions/:id", ActionResource{"delete", "session"}},
		{"GET", "/api/v1/projects/:id", ActionResource{"get", "project"}},
		{"POST", "/api/v1/projects", ActionResource{"create", "project"}},
		{"PUT", "/api/v1/projects/:id/tasks/:taskId", ActionResource{"update", "task"}},
		{"GET", "/api/v1/projects/:id/tasks", ActionResource{"list", "task"}},
		{"GET", "", ActionResource{"unknown", "unknown"}},
	}
	for _, tc := range cases {
		got := ParseRoute(tc.method, tc.path)
		if got != tc.want {
			t.Errorf("ParseRoute(%s %s) = %+v, want %+v", tc.method, tc.path, got, tc.want)
		}
	}
}
