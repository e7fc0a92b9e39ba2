package api

import (
	"net/http"
	"os"
)

type Principal struct {
	Role string // admin, operator, viewer
}

// getPrincipal reads the caller role from the X-Role header. Without the
// header the role is AUTH_DEFAULT_ROLE, or operator.
func (s *Server) getPrincipal(r *http.Request) Principal {
	role := r.Header.Get("X-Role")
	if role == "" {
		role = os.Getenv("AUTH_DEFAULT_ROLE")
	}
	if role == "" {
		role = "operator"
	}
	return Principal{Role: role}
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == "admin" }

// CanOperate reports whether the principal may change orders and staff.
func (p Principal) CanOperate() bool { return p.Role == "admin" || p.Role == "operator" }
