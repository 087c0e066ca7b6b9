package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/yong-jelly/usemap-sub002/internal/cache"
	"github.com/yong-jelly/usemap-sub002/internal/metrics"
	"github.com/yong-jelly/usemap-sub002/internal/queue"
)

// AttachmentRemover deletes stored comment images.
// This abstracts the media service so workers don't depend on object storage directly.
type AttachmentRemover interface {
	DeleteAttachments(ctx context.Context, keys []string) error
}

// Handler processes comment events from the queue.
//
// The writer's own cached thread was already patched in place by the
// service, so the handler only drops everyone else's; they rebuild on their
// next read.
type Handler struct {
	threads     cache.ThreadCache
	counts      cache.CountCache
	attachments AttachmentRemover // Can be nil if object storage is not wired
}

// NewHandler creates a new event handler.
func NewHandler(threads cache.ThreadCache, counts cache.CountCache, attachments AttachmentRemover) *Handler {
	return &Handler{
		threads:     threads,
		counts:      counts,
		attachments: attachments,
	}
}

// HandleEvent routes an event to the appropriate handler based on type.
func (h *Handler) HandleEvent(ctx context.Context, event queue.CommentEvent) error {
	startTime := time.Now()
	var err error

	switch event.Type {
	case queue.EventCommentCreated:
		err = h.handleCommentCreated(ctx, event)
	case queue.EventCommentUpdated:
		err = h.handleCommentUpdated(ctx, event)
	case queue.EventCommentDeactivated:
		err = h.handleCommentDeactivated(ctx, event)
	default:
		log.Printf("[Worker] Unknown event type: %s", event.Type)
		metrics.EventsHandled.WithLabelValues("unknown", "error").Inc()
		return fmt.Errorf("unknown event type: %s", event.Type)
	}

	if err != nil {
		metrics.EventsHandled.WithLabelValues(event.Type, "error").Inc()
		log.Printf("[Worker] HandleEvent FAILED: type=%s place=%s comment=%s duration=%v err=%v",
			event.Type, event.PlaceID, event.CommentID, time.Since(startTime), err)
		return err
	}

	metrics.EventsHandled.WithLabelValues(event.Type, "ok").Inc()
	log.Printf("[Worker] HandleEvent OK: type=%s place=%s comment=%s duration=%v",
		event.Type, event.PlaceID, event.CommentID, time.Since(startTime))
	return nil
}

// handleCommentCreated drops other viewers' threads and the place total.
func (h *Handler) handleCommentCreated(ctx context.Context, event queue.CommentEvent) error {
	return errors.Join(
		h.invalidateThreads(ctx, event),
		h.dropCount(ctx, event),
	)
}

// handleCommentUpdated drops other viewers' threads and any images the edit
// no longer references. The total is unchanged.
func (h *Handler) handleCommentUpdated(ctx context.Context, event queue.CommentEvent) error {
	return errors.Join(
		h.invalidateThreads(ctx, event),
		h.deleteAttachments(ctx, event),
	)
}

// handleCommentDeactivated drops threads and the total, then deletes the
// images of every removed comment.
func (h *Handler) handleCommentDeactivated(ctx context.Context, event queue.CommentEvent) error {
	log.Printf("[Worker] CommentDeactivated: place=%s comment=%s removed=%d images=%d",
		event.PlaceID, event.CommentID, event.Removed, len(event.ImagePaths))

	return errors.Join(
		h.invalidateThreads(ctx, event),
		h.dropCount(ctx, event),
		h.deleteAttachments(ctx, event),
	)
}

func (h *Handler) invalidateThreads(ctx context.Context, event queue.CommentEvent) error {
	if h.threads == nil {
		return nil
	}
	n, err := h.threads.InvalidatePlace(ctx, event.PlaceID, event.ActorID)
	if err != nil {
		return fmt.Errorf("invalidate threads: %w", err)
	}
	if n > 0 {
		log.Printf("[Worker] Threads dropped: place=%s count=%d", event.PlaceID, n)
	}
	return nil
}

func (h *Handler) dropCount(ctx context.Context, event queue.CommentEvent) error {
	if h.counts == nil {
		return nil
	}
	if err := h.counts.Delete(ctx, event.PlaceID); err != nil {
		return fmt.Errorf("drop count: %w", err)
	}
	return nil
}

func (h *Handler) deleteAttachments(ctx context.Context, event queue.CommentEvent) error {
	if h.attachments == nil || len(event.ImagePaths) == 0 {
		return nil
	}
	if err := h.attachments.DeleteAttachments(ctx, event.ImagePaths); err != nil {
		return fmt.Errorf("delete attachments: %w", err)
	}
	log.Printf("[Worker] Attachments deleted: place=%s count=%d", event.PlaceID, len(event.ImagePaths))
	return nil
}
