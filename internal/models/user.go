package models

import (
	"fmt"
	"time"
)

// Role is the kind of account a verified caller holds
type Role string

const (
	RoleChild     Role = "child"
	RoleParent    Role = "parent"
	RoleTherapist Role = "therapist"
)

// ParseRole validates a role string from an identity token
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleChild, RoleParent, RoleTherapist:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// User mirrors an account from the identity provider
type User struct {
	ID          string    `json:"id"`
	Role        Role      `json:"role"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ParentChildLink records that a parent may act for a child
type ParentChildLink struct {
	ParentID  string
	ChildID   string
	CreatedAt time.Time
}

// Identity is the verified caller of an operation
type Identity struct {
	UserID   string
	Role     Role
	Name     string
	Email    string
	Children []string
}

func (i Identity) IsChild() bool     { return i.Role == RoleChild }
func (i Identity) IsParent() bool    { return i.Role == RoleParent }
func (i Identity) IsTherapist() bool { return i.Role == RoleTherapist }
