package models

import (
	"strings"
	"time"
)

// Attachment describes a file or image bound to one message.
type Attachment struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// IsImage reports whether the attachment carries image content.
func (a *Attachment) IsImage() bool {
	return a != nil && strings.HasPrefix(a.MimeType, "image/")
}

// Message represents a direct message between two users.
type Message struct {
	ID         string      `json:"id"`
	SenderID   string      `json:"senderId"`
	ReceiverID string      `json:"receiverId"`
	Text       string      `json:"text,omitempty"`
	Image      string      `json:"image,omitempty"` // Legacy image URL
	File       *Attachment `json:"file,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// AttachmentURL returns the URL of the message attachment, preferring the
// file record over the legacy image field.
func (m *Message) AttachmentURL() string {
	if m.File != nil && m.File.URL != "" {
		return m.File.URL
	}
	return m.Image
}
