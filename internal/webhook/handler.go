package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/shacrom/mmorpg-news/internal/event"
)

const maxPayloadBytes = 1 << 20

type Publisher interface {
	PublishContentChanged(ctx context.Context, msg event.ContentChangedMessage) error
}

// payload is the body the CMS posts for entry lifecycle events. v3 sends
// updated_at, v4 updatedAt.
type payload struct {
	Event string `json:"event"`
	Model string `json:"model"`
	Entry *struct {
		ID          int64  `json:"id"`
		Slug        string `json:"slug"`
		UpdatedAt   string `json:"updatedAt"`
		UpdatedAtV3 string `json:"updated_at"`
	} `json:"entry"`
}

// Handler receives CMS webhooks, records each delivery once and announces new
// ones on the message bus.
type Handler struct {
	repo      Repository
	publisher Publisher
	secret    string
	logger    *log.Logger
}

func NewHandler(repo Repository, publisher Publisher, secret string, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}

	return &Handler{
		repo:      repo,
		publisher: publisher,
		secret:    secret,
		logger:    logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		h.logger.Printf("webhook: invalid payload: %v", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if !strings.HasPrefix(p.Event, "entry.") || p.Entry == nil {
		h.logger.Printf("webhook: ignoring %q event", p.Event)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	d := &Delivery{
		Event:          p.Event,
		Model:          p.Model,
		EntryID:        p.Entry.ID,
		Slug:           p.Entry.Slug,
		EntryUpdatedAt: p.Entry.UpdatedAt,
	}
	if d.EntryUpdatedAt == "" {
		d.EntryUpdatedAt = p.Entry.UpdatedAtV3
	}
	// Without a revision the delivery is keyed by arrival time so it is never
	// taken for a duplicate of an earlier one.
	if d.EntryUpdatedAt == "" {
		d.ReceivedAt = time.Now().UTC()
		d.EntryUpdatedAt = "received:" + d.ReceivedAt.Format(time.RFC3339Nano)
	}

	ctx := r.Context()

	created, err := h.repo.Record(ctx, d)
	if err != nil {
		h.logger.Printf("webhook: failed to record %s %s#%d: %v", d.Event, d.Model, d.EntryID, err)
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
		return
	}
	if !created {
		w.WriteHeader(http.StatusOK)
		return
	}

	err = h.publisher.PublishContentChanged(ctx, event.ContentChangedMessage{
		Model:   d.Model,
		EntryID: d.EntryID,
		Slug:    d.Slug,
		Action:  d.Event,
	})
	if err != nil {
		h.logger.Printf("webhook: failed publishing %s %s#%d: %v", d.Event, d.Model, d.EntryID, err)
		if ferr := h.repo.Forget(ctx, d); ferr != nil {
			h.logger.Printf("webhook: failed to forget delivery %s#%d: %v", d.Model, d.EntryID, ferr)
		}
		http.Error(w, "publish failed", http.StatusBadGateway)
		return
	}

	h.logger.Printf("webhook: published %s %s#%d", d.Event, d.Model, d.EntryID)
	w.WriteHeader(http.StatusAccepted)
}

// authorized accepts the shared secret either raw or as a bearer token in
// the Authorization header. An empty secret disables the check.
func (h *Handler) authorized(r *http.Request) bool {
	if h.secret == "" {
		return true
	}
	got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) == 1
}
