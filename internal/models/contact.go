package models

import "time"

// HiddenContact is a directed edge: OwnerID removed HiddenUserID from their
// own contact list. It never affects HiddenUserID's view of OwnerID.
type HiddenContact struct {
	OwnerID      string    `json:"ownerId"`
	HiddenUserID string    `json:"hiddenUserId"`
	CreatedAt    time.Time `json:"createdAt"`
}
