package models

// Participant is the identity resolved for a connection at connect time.
// An empty ID marks an anonymous spectator.
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Anonymous reports whether the participant may only spectate.
func (p Participant) Anonymous() bool {
	return p.ID == ""
}
