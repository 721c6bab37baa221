package model

import "github.com/google/uuid"

type UserRole string

const (
	UserRoleAdmin      UserRole = "ADMIN"
	UserRoleAccountant UserRole = "ACCOUNTANT"
	UserRoleViewer     UserRole = "VIEWER"
)

type Principal struct {
	UserID uuid.UUID
	OrgID  uuid.UUID
	Role   UserRole
}

func (p Principal) IsAdmin() bool {
	return p.Role == UserRoleAdmin
}

func (p Principal) IsViewer() bool {
	return p.Role == UserRoleViewer
}

// CanWrite covers invoice creation and payment recording.
func (p Principal) CanWrite() bool {
	return p.Role == UserRoleAdmin || p.Role == UserRoleAccountant
}
