package domain

// CourierRole represents a capability granted to a courier account.
type CourierRole string

const (
	RoleDeliveryPerson CourierRole = "DELIVERY_PERSON"
	RoleFleetManager   CourierRole = "FLEET_MANAGER"
)

// Courier represents a delivery person in the system.
type Courier struct {
	ID        string
	Name      string
	Phone     string
	Enabled   bool
	Available bool
	Roles     []CourierRole
}

// HasRole reports whether the courier holds the given role.
func (c *Courier) HasRole(role CourierRole) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// CanDeliver reports whether the courier qualifies for assignment:
// account enabled, marked available, and holding the delivery role.
func (c *Courier) CanDeliver() bool {
	return c.Enabled && c.Available && c.HasRole(RoleDeliveryPerson)
}
