// Package scope decides which tenant data an authenticated actor may touch.
package scope

import (
	"fmt"
)

// Role names as carried in tokens.
const (
	RoleSuperadmin = "superadmin"
	RoleAdmin      = "admin"
	RoleLearner    = "learner"
)

// Role is closed: Superadmin, Admin or Learner.
type Role interface {
	Name() string
	role()
}

// Superadmin is unrestricted staff.
type Superadmin struct{}

// Admin is scoped to the institutions it lists.
type Admin struct {
	UniversityIDs []string
}

// Learner is an applicant bounded by ownership.
type Learner struct{}

func (Superadmin) Name() string { return RoleSuperadmin }
func (Admin) Name() string      { return RoleAdmin }
func (Learner) Name() string    { return RoleLearner }

func (Superadmin) role() {}
func (Admin) role()      {}
func (Learner) role()    {}

// Actor is the authenticated caller of one request.
type Actor struct {
	UserID string
	Email  string
	Name   string
	Role   Role
}

// ParseRole builds the Role for a role name; universityIDs only apply to admins.
func ParseRole(name string, universityIDs []string) (Role, error) {
	switch name {
	case RoleSuperadmin:
		return Superadmin{}, nil
	case RoleAdmin:
		ids := make([]string, 0, len(universityIDs))
		for _, id := range universityIDs {
			if id != "" {
				ids = append(ids, id)
			}
		}
		return Admin{UniversityIDs: ids}, nil
	case RoleLearner, "":
		return Learner{}, nil
	}
	return nil, fmt.Errorf("unknown role %q", name)
}

// RoleName returns the actor's role name, or "" for a nil actor.
func (a *Actor) RoleName() string {
	if a == nil || a.Role == nil {
		return ""
	}
	return a.Role.Name()
}

// IsStaff is true for admins and superadmins.
func (a *Actor) IsStaff() bool {
	switch a.Role.(type) {
	case Superadmin, Admin:
		return true
	}
	return false
}

// UniversityIDs returns the admin's assignment, nil for other roles.
func (a *Actor) UniversityIDs() []string {
	if admin, ok := a.Role.(Admin); ok {
		return admin.UniversityIDs
	}
	return nil
}
