package models

import (
	"fmt"
	"strings"
	"time"
)

// Project represents a collaborative project (members hold a role on it)
type Project struct {
	ID                     string     `json:"id" db:"id"`
	Name                   string     `json:"name" db:"name"`
	Description            string     `json:"description,omitempty" db:"description"`
	Badge                  string     `json:"badge,omitempty" db:"badge"`
	ExpectedCompletionDate *time.Time `json:"expected_completion_date,omitempty" db:"expected_completion_date"`
	Priority               string     `json:"priority,omitempty" db:"priority"`
	Status                 string     `json:"status,omitempty" db:"status"`
	// Owners is derived from owner memberships, never stored on the row.
	Owners    []string  `json:"owners" db:"-"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ProjectInput carries the editable project fields.
type ProjectInput struct {
	Name                   string     `json:"name" validate:"required,max=120"`
	Description            string     `json:"description" validate:"max=2000"`
	Badge                  string     `json:"badge" validate:"max=40"`
	ExpectedCompletionDate *time.Time `json:"expected_completion_date"`
	Priority               string     `json:"priority" validate:"max=40"`
	Status                 string     `json:"status" validate:"max=40"`
}

// Apply copies the input fields onto the project.
func (in ProjectInput) Apply(p *Project) {
	p.Name = strings.TrimSpace(in.Name)
	p.Description = in.Description
	p.Badge = in.Badge
	p.ExpectedCompletionDate = in.ExpectedCompletionDate
	p.Priority = in.Priority
	p.Status = in.Status
}

// Role is a member's role on a project.
//
// Roles form a chain: owner includes canEdit, canEdit includes canView.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleCanEdit Role = "canEdit"
	RoleCanView Role = "canView"
)

func (r Role) rank() int {
	switch r {
	case RoleOwner:
		return 3
	case RoleCanEdit:
		return 2
	case RoleCanView:
		return 1
	default:
		return 0
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r.rank() > 0
}

// Includes reports whether r grants everything required grants.
func (r Role) Includes(required Role) bool {
	if !r.Valid() || !required.Valid() {
		return false
	}
	return r.rank() >= required.rank()
}

// ParseRole 解析角色字符串（大小写不敏感）
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "owner":
		return RoleOwner, nil
	case "canedit":
		return RoleCanEdit, nil
	case "canview":
		return RoleCanView, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// ProjectMembership relates users to projects with a role
type ProjectMembership struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	ProjectID string    `json:"project_id" db:"project_id"`
	Role      Role      `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ProjectMember is a membership joined with the member's identity record.
type ProjectMember struct {
	ProjectMembership
	User *User `json:"user,omitempty"`
}
