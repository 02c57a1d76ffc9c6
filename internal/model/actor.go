// internal/model/actor.go
package model

const (
	RoleUser    = "user"
	RoleManager = "manager"
)

// Actor is the user on whose behalf a request runs.
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

func (a *Actor) IsManager() bool {
	return a != nil && a.Role == RoleManager
}

// Anonymous reports whether no user identity is attached.
func (a *Actor) Anonymous() bool {
	return a == nil || a.ID == ""
}

// CanModify reports whether the actor may edit or delete c.
func (a *Actor) CanModify(c *Campaign) bool {
	if a.Anonymous() {
		return false
	}
	return a.IsManager() || a.ID == c.OwnerID
}
