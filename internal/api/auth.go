// Package api implements HTTP handlers and helpers for the sigscore webhook service.
package api

import "net/http"

type Principal struct {
	Tenant string
	Role   string // admin, member
}

// getPrincipal extracts tenant and role from headers. Production deployments
// sit behind a gateway that injects these after token verification.
func (s *Server) getPrincipal(r *http.Request) Principal {
	tenant := r.Header.Get("X-Tenant-Id")
	role := r.Header.Get("X-Role")
	if tenant == "" {
		tenant = "t_demo"
	}
	if role == "" {
		role = "admin"
	}
	return Principal{Tenant: tenant, Role: role}
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == "admin" }
