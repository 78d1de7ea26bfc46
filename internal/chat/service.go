// Package chat implements direct messaging between users: sending with an
// optional attachment, deleting, reading history and hiding contacts.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/chatterbox/internal/attachment"
	"github.com/eldtechnologies/chatterbox/internal/delivery"
	"github.com/eldtechnologies/chatterbox/internal/metrics"
	"github.com/eldtechnologies/chatterbox/internal/models"
	"github.com/eldtechnologies/chatterbox/internal/store"
)

// SendRequest describes one outgoing message.
type SendRequest struct {
	SenderID   string
	ReceiverID string
	Text       string
	Source     attachment.Source // nil when there is no attachment
	Origin     string            // scheme://host of the request
}

// DeletedEvent is the payload of a message-deleted event.
type DeletedEvent struct {
	MessageID string `json:"messageId"`
}

// Service runs the message pipeline.
type Service struct {
	store  store.DataStore
	files  attachment.Store
	fanout *delivery.Fanout
	logger zerolog.Logger
}

// NewService creates a message service.
func NewService(ds store.DataStore, files attachment.Store, fanout *delivery.Fanout, logger zerolog.Logger) *Service {
	return &Service{
		store:  ds,
		files:  files,
		fanout: fanout,
		logger: logger.With().Str("component", "chat").Logger(),
	}
}

// Send stores the attachment, persists the message and pushes it to the
// receiver if they are online.
func (s *Service) Send(ctx context.Context, req SendRequest) (*models.Message, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" && req.Source == nil {
		return nil, ErrEmptyMessage
	}

	receiver, err := s.store.GetUserByID(ctx, req.ReceiverID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if receiver == nil {
		return nil, ErrUnknownRecipient
	}

	msg := &models.Message{
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		Text:       text,
	}

	if req.Source != nil {
		blob, err := attachment.Resolve(req.Source)
		if err != nil {
			return nil, err
		}
		att, err := s.files.Put(ctx, req.Origin, blob)
		if err != nil {
			return nil, err
		}
		msg.File = att
		if att.IsImage() {
			msg.Image = att.URL
		}
	}

	if err := s.store.CreateMessage(ctx, msg); err != nil {
		if msg.File != nil {
			s.release(ctx, msg.File.URL)
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	metrics.MessagesSent.WithLabelValues(messageKind(msg)).Inc()
	s.fanout.Deliver(msg.ReceiverID, delivery.EventNewMessage, msg)
	return msg, nil
}

// Delete removes a message owned by requesterID, its local attachment, and
// notifies both participants.
func (s *Service) Delete(ctx context.Context, requesterID, messageID string) error {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if msg == nil {
		return ErrNotFound
	}
	if msg.SenderID != requesterID {
		return ErrForbidden
	}

	if url := msg.AttachmentURL(); url != "" {
		s.release(ctx, url)
	}

	deleted, err := s.store.DeleteMessage(ctx, messageID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !deleted {
		// A concurrent delete won; it already notified both participants.
		return ErrNotFound
	}
	metrics.MessagesDeleted.Inc()

	event := DeletedEvent{MessageID: messageID}
	s.fanout.Deliver(msg.ReceiverID, delivery.EventMessageDeleted, event)
	s.fanout.Deliver(msg.SenderID, delivery.EventMessageDeleted, event)
	return nil
}

// History returns every message between userID and counterpartID in both
// directions, oldest first.
func (s *Service) History(ctx context.Context, userID, counterpartID string) ([]models.Message, error) {
	msgs, err := s.store.ListConversation(ctx, userID, counterpartID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return msgs, nil
}

// release frees stored attachment bytes. Failures never fail the caller.
func (s *Service) release(ctx context.Context, url string) {
	if err := s.files.Release(ctx, url); err != nil {
		metrics.AttachmentCleanupFailures.Inc()
		s.logger.Warn().Err(err).Str("url", url).Msg("attachment cleanup failed")
	}
}

func messageKind(msg *models.Message) string {
	switch {
	case msg.File == nil:
		return "text"
	case msg.File.IsImage():
		return "image"
	default:
		return "file"
	}
}
