package chat

import (
	"context"
	"fmt"

	"github.com/eldtechnologies/chatterbox/internal/metrics"
	"github.com/eldtechnologies/chatterbox/internal/models"
	"github.com/eldtechnologies/chatterbox/internal/store"
)

// Contacts filters each user's contact list through their hidden set.
type Contacts struct {
	store store.DataStore
}

// NewContacts creates the contact overlay.
func NewContacts(ds store.DataStore) *Contacts {
	return &Contacts{store: ds}
}

// ListVisible returns every user except ownerID that ownerID has not hidden.
func (c *Contacts) ListVisible(ctx context.Context, ownerID string) ([]models.User, error) {
	users, err := c.store.ListUsersExcept(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	hidden, err := c.store.HiddenContactIDs(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if len(hidden) == 0 {
		return users, nil
	}

	skip := make(map[string]struct{}, len(hidden))
	for _, id := range hidden {
		skip[id] = struct{}{}
	}
	visible := make([]models.User, 0, len(users))
	for _, u := range users {
		if _, ok := skip[u.ID]; !ok {
			visible = append(visible, u)
		}
	}
	return visible, nil
}

// Hide removes targetID from ownerID's list only. Hiding twice is a no-op.
func (c *Contacts) Hide(ctx context.Context, ownerID, targetID string) error {
	if err := c.store.HideContact(ctx, ownerID, targetID); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	metrics.ContactsHidden.Inc()
	return nil
}
