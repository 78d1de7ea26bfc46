package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/eldtechnologies/chatterbox/internal/api/middleware"
	"github.com/eldtechnologies/chatterbox/internal/attachment"
	"github.com/eldtechnologies/chatterbox/internal/chat"
)

// SendMessageRequest is the JSON form of a send request. Image is a legacy
// base64 data URL.
type SendMessageRequest struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

// DeleteMessageResponse represents the delete message response.
type DeleteMessageResponse struct {
	Message   string `json:"message"`
	MessageID string `json:"messageId"`
}

// GetMessages returns the conversation between the caller and {id}.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	msgs, err := h.chat.History(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		h.Fail(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, msgs)
}

// SendMessage handles a multipart or JSON send to {id}.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	sender := middleware.GetUserFromContext(r.Context())
	if sender == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	text, source, err := h.parseSend(r)
	if err != nil {
		h.Fail(w, r, err)
		return
	}

	msg, err := h.chat.Send(r.Context(), chat.SendRequest{
		SenderID:   sender.ID,
		ReceiverID: chi.URLParam(r, "id"),
		Text:       text,
		Source:     source,
		Origin:     requestOrigin(r, h.trustProxy),
	})
	if err != nil {
		h.Fail(w, r, err)
		return
	}
	h.JSON(w, http.StatusCreated, msg)
}

// DeleteMessage deletes {id} if the caller sent it.
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.chat.Delete(r.Context(), user.ID, id); err != nil {
		h.Fail(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, DeleteMessageResponse{
		Message:   "message deleted",
		MessageID: id,
	})
}

func (h *Handler) parseSend(r *http.Request) (string, attachment.Source, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return h.parseMultipartSend(r)
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return "", nil, nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, err
		}
		return "", nil, fmt.Errorf("%w: invalid JSON body", errBadRequest)
	}
	if req.Image != "" {
		return req.Text, attachment.DataURL(req.Image), nil
	}
	return req.Text, nil, nil
}

// parseMultipartSend reads the text field and at most one attachment. The
// file part wins over the legacy image part, which may be a file or a data
// URL.
func (h *Handler) parseMultipartSend(r *http.Request) (string, attachment.Source, error) {
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, err
		}
		return "", nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	defer r.MultipartForm.RemoveAll()

	text := r.FormValue("text")
	for _, field := range []string{"file", "image"} {
		f, header, err := r.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", attachment.ErrInvalidAttachment, err)
		}
		defer f.Close()
		src, err := h.readPart(f, header)
		if err != nil {
			return "", nil, err
		}
		return text, src, nil
	}

	if image := r.FormValue("image"); image != "" {
		return text, attachment.DataURL(image), nil
	}
	return text, nil, nil
}

func (h *Handler) readPart(f multipart.File, header *multipart.FileHeader) (attachment.Source, error) {
	if header.Size > h.maxUploadBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", attachment.ErrInvalidAttachment, h.maxUploadBytes)
	}
	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", attachment.ErrInvalidAttachment, err)
	}
	if int64(len(data)) > h.maxUploadBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", attachment.ErrInvalidAttachment, h.maxUploadBytes)
	}

	// The declared type is stored as sent; sniffing only fills a gap.
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
		if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
			mimeType = mt
		}
	}
	return attachment.Multipart{Data: data, MimeType: mimeType, Filename: header.Filename}, nil
}

// requestOrigin returns scheme://host as seen by the client. Both parts
// come from the request, so deployments behind a proxy should pin
// PUBLIC_BASE_URL. X-Forwarded-Proto is read only when trustProxy is set
// and only as http or https.
func requestOrigin(r *http.Request, trustProxy bool) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if trustProxy {
		proto := strings.ToLower(strings.TrimSpace(strings.Split(r.Header.Get("X-Forwarded-Proto"), ",")[0]))
		if proto == "http" || proto == "https" {
			scheme = proto
		}
	}
	return scheme + "://" + r.Host
}
