package domain

// Role is the portal role carried in the identity provider's token claims.
// Identity itself is external; the core only authorizes against the role.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleEmployee Role = "EMPLOYEE"
	RoleRetailer Role = "RETAILER"
	RoleCustomer Role = "CUSTOMER"
)

// CanSettleApplications reports whether the role may approve or reject
// service applications.
func (r Role) CanSettleApplications() bool {
	return r == RoleAdmin || r == RoleEmployee
}

// CanDeleteApplications reports whether the role may delete applications.
func (r Role) CanDeleteApplications() bool {
	return r == RoleAdmin
}

// Valid reports whether the role is one of the known portal roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEmployee, RoleRetailer, RoleCustomer:
		return true
	}
	return false
}
