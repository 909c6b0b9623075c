package models

// Role is the marketplace role carried in the caller's token.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleSeller   Role = "seller"
	RoleAdmin    Role = "admin"
)

// Actor identifies who performs a mutation.
type Actor struct {
	ID    ID
	Email string
	Role  Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
