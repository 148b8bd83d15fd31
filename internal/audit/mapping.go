package audit

import "strings"

// ActionResource holds action and resource derived from an HTTP route.
type ActionResource struct {
	Action   string
	Resource string
}

// Auth route overrides: the verb is the final path segment, not the HTTP method.
var authActions = map[string]string{
	"register":   "register",
	"login":      "login",
	"refresh":    "refresh",
	"logout":     "logout",
	"logout-all": "logout_all",
}

// ParseRoute returns action and resource for an HTTP method and route path
// (e.g. GET /api/v1/projects/:id/tasks). Resource is the last non-parameter
// path segment, singularized naively; action is derived from the HTTP method.
// Auth routes map the trailing segment to the action on resource "auth".
func ParseRoute(method, path string) ActionResource {
	segs := splitPath(path)
	if len(segs) == 0 {
		return ActionResource{Action: "unknown", Resource: "unknown"}
	}
	for i, s := range segs {
		if s == "auth" && i < len(segs)-1 {
			if action, ok := authActions[segs[len(segs)-1]]; ok {
				return ActionResource{Action: action, Resource: "auth"}
			}
		}
	}
	resource := "unknown"
	for i := len(segs) - 1; i >= 0; i-- {
		if !strings.HasPrefix(segs[i], ":") && segs[i] != "api" && !isVersion(segs[i]) {
			resource = singularize(segs[i])
			break
		}
	}
	return ActionResource{Action: methodToAction(method, path), Resource: resource}
}

func splitPath(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

func isVersion(s string) bool {
	return len(s) >= 2 && s[0] == 'v' && s[1] >= '0' && s[1] <= '9'
}

func singularize(s string) string {
	if strings.HasSuffix(s, "s") && !strings.HasSuffix(s, "ss") {
		return strings.TrimSuffix(s, "s")
	}
	return s
}

func methodToAction(method, path string) string {
	switch method {
	case "GET":
		// A trailing path parameter means a point read, otherwise a list.
		if strings.HasPrefix(lastSegment(path), ":") {
			return "get"
		}
		return "list"
	case "POST":
		return "create"
	case "PUT", "PATCH":
		return "update"
	case "DELETE":
		return "delete"
	default:
		return strings.ToLower(method)
	}
}

func lastSegment(path string) string {
	segs := splitPath(path)
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}
