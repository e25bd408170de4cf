package service

import "strings"

// Account roles carried in access tokens.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   uint
	Role string
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return strings.EqualFold(strings.TrimSpace(a.Role), RoleAdmin)
}
