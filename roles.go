package auth

import "strings"

// UserRole is the user's role
type UserRole = string

const (
	// RoleCustomer orders deliveries
	RoleCustomer UserRole = "customer"
	// RoleAdmin manages a community
	RoleAdmin UserRole = "admin"
	// RoleDelivery fulfils deliveries
	RoleDelivery UserRole = "delivery"
	// RoleDeliveryPartner is a legacy alias of RoleDelivery
	RoleDeliveryPartner UserRole = "delivery_partner"
)

// GetAllRoles returns the roles a user can pick
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleCustomer,
		RoleAdmin,
		RoleDelivery,
	}
}

// IsValidRole checks if the role is one a user can pick
func IsValidRole(role string) bool {
	switch strings.TrimSpace(role) {
	case RoleCustomer, RoleAdmin, RoleDelivery, RoleDeliveryPartner:
		return true
	default:
		return false
	}
}

// UsableRole reports whether a cached role value can be used. Values that
// went through stringified null storage ("undefined", "null") are rejected.
func UsableRole(role string) bool {
	return usableValue(role)
}

func usableValue(v string) bool {
	switch strings.TrimSpace(v) {
	case "", "undefined", "null":
		return false
	default:
		return true
	}
}

// ParseRole normalizes a role, mapping delivery_partner to delivery.
func ParseRole(roleStr string) (UserRole, bool) {
	role := strings.ToLower(strings.TrimSpace(roleStr))
	if role == RoleDeliveryPartner {
		role = RoleDelivery
	}
	return role, IsValidRole(role)
}
