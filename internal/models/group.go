package models

// Group is a named multi-participant conversation. Invariant:
// CreatedBy is an admin and every admin is a participant.
type Group struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Participants []string `json:"participants"`
	Admins       []string `json:"admins"`
	CreatedBy    string   `json:"createdBy"`
	CreatedAt    int64    `json:"createdAt"`
}

// HasParticipant reports group membership.
func (g Group) HasParticipant(userID string) bool {
	return contains(g.Participants, userID)
}

// HasAdmin reports whether userID is a group admin.
func (g Group) HasAdmin(userID string) bool {
	return contains(g.Admins, userID)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
