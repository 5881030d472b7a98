package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                              "/",
		"/metrics":                      "/metrics",
		"/v1/roles/01ABC":               "/v1/roles/:id",
		"/v1/roles/01ABC/permissions":   "/v1/roles/:id/permissions",
		"/v1/users/01ABC/roles":         "/v1/users/:id/roles",
		"/v1/projects/01ABC":            "/v1/projects/:id",
		"/v1/projects/01ABC/members":    "/v1/projects/:id/members",
		"/v1/projects":                  "/v1/projects",
		"/v1/auth/login":                "/v1/auth/login",
		"/v1/projects/01ABC?membership": "/v1/projects/:id",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
