//go:build !linux || !cgo
// +build !linux !cgo

package auth

import (
	"fmt"
	"os/user"
)

// Role represents user access level
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleReadOnly Role = "readonly"
)

// User represents authenticated user
type User struct {
	Username string `json:"username"`
	UID      string `json:"uid"`
	GID      string `json:"gid"`
	Role     Role   `json:"role"`
}

// PAMAuth is the non-Linux stand-in for the PAM authenticator. The
// gateway targets Linux hosts; off-Linux builds (development machines,
// CI) compile but can only run with no_auth enabled.
type PAMAuth struct {
	serviceName string
	adminGroups []string
}

// NewPAMAuth creates the stub authenticator.
func NewPAMAuth() *PAMAuth {
	return &PAMAuth{
		serviceName: "login",
		adminGroups: []string{"wheel", "sudo", "root", "admin"},
	}
}

// Authenticate always fails off-Linux.
func (p *PAMAuth) Authenticate(username, password string) (*User, error) {
	return nil, fmt.Errorf("PAM authentication is not supported on this platform (Linux only)")
}

// determineRole maps group membership to a role, same rules as the
// Linux build.
func (p *PAMAuth) determineRole(username string) Role {
	u, err := user.Lookup(username)
	if err != nil {
		return RoleReadOnly
	}

	groups, err := u.GroupIds()
	if err != nil {
		return RoleReadOnly
	}

	for _, gid := range groups {
		group, err := user.LookupGroupId(gid)
		if err != nil {
			continue
		}
		for _, adminGroup := range p.adminGroups {
			if group.Name == adminGroup {
				return RoleAdmin
			}
		}
	}

	if username == "root" {
		return RoleAdmin
	}

	return RoleReadOnly
}

// IsAdmin checks if user has admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
