package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/yong-jelly/usemap-sub002/internal/httputil"
	"github.com/yong-jelly/usemap-sub002/internal/model"
	"github.com/yong-jelly/usemap-sub002/internal/transport/http/middleware"
)

// CommentService is the part of service.CommentService the handler uses.
type CommentService interface {
	List(ctx context.Context, placeID, viewerID string, limit, offset int) (*model.CommentThreadResponse, error)
	Create(ctx context.Context, placeID, viewerID string, req model.CreateCommentRequest) (*model.Comment, error)
	Update(ctx context.Context, commentID, viewerID string, req model.UpdateCommentRequest) (*model.Comment, error)
	Deactivate(ctx context.Context, commentID, viewerID string) (*model.DeactivateResponse, error)
	ToggleLike(ctx context.Context, commentID, viewerID string) (*model.LikeResponse, error)
	Count(ctx context.Context, placeID string) (*model.CommentCountResponse, error)
}

type CommentHandler struct {
	commentService CommentService
}

func NewCommentHandler(commentService CommentService) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
	}
}

// List handles GET /places/{placeId}/comments?limit=&offset=
// Returns the structured thread loaded so far. Works anonymously.
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	placeID, ok := placeIDParam(w, r)
	if !ok {
		return
	}

	limit, err := queryInt(r, "limit", model.DefaultPageLimit)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid limit")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		httputil.WriteBadRequest(w, "Invalid offset")
		return
	}

	viewerID, _ := middleware.GetUserIDFromContext(r.Context())

	resp, err := h.commentService.List(r.Context(), placeID, viewerID, limit, offset)
	if err != nil {
		log.Printf("[ERROR] List comments handler: place=%s viewer=%s err=%v", placeID, viewerID, err)
		httputil.WriteInternalError(w, "Failed to load comments")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Count handles GET /places/{placeId}/comments/count
func (h *CommentHandler) Count(w http.ResponseWriter, r *http.Request) {
	placeID, ok := placeIDParam(w, r)
	if !ok {
		return
	}

	resp, err := h.commentService.Count(r.Context(), placeID)
	if err != nil {
		log.Printf("[ERROR] Count comments handler: place=%s err=%v", placeID, err)
		httputil.WriteInternalError(w, "Failed to count comments")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Create handles POST /places/{placeId}/comments
// Creates a root comment, or a reply when parent_comment_id is set.
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	placeID, ok := placeIDParam(w, r)
	if !ok {
		return
	}

	var req model.CreateCommentRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	comment, err := h.commentService.Create(r.Context(), placeID, userID, req)
	if err != nil {
		writeCommentError(w, err, "create", userID)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, comment)
}

// Update handles PATCH /comments/{commentId}
// Replaces content, title and images (only owner can update).
func (h *CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	commentID := chi.URLParam(r, "commentId")

	var req model.UpdateCommentRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	comment, err := h.commentService.Update(r.Context(), commentID, userID, req)
	if err != nil {
		writeCommentError(w, err, "update", userID)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, comment)
}

// Deactivate handles DELETE /comments/{commentId}
// Soft-deletes a comment and, for a root, its replies (only owner can delete).
func (h *CommentHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	resp, err := h.commentService.Deactivate(r.Context(), chi.URLParam(r, "commentId"), userID)
	if err != nil {
		writeCommentError(w, err, "deactivate", userID)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// ToggleLike handles POST /comments/{commentId}/like
func (h *CommentHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	resp, err := h.commentService.ToggleLike(r.Context(), chi.URLParam(r, "commentId"), userID)
	if err != nil {
		writeCommentError(w, err, "toggle like", userID)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// writeCommentError maps service errors to responses.
func writeCommentError(w http.ResponseWriter, err error, op, userID string) {
	switch {
	case errors.Is(err, model.ErrInvalidID):
		httputil.WriteBadRequest(w, "Invalid comment ID")
	case errors.Is(err, model.ErrCommentNotFound):
		httputil.WriteNotFound(w, "Comment not found")
	case errors.Is(err, model.ErrNotCommentOwner):
		httputil.WriteForbidden(w, "You can only change your own comments")
	case errors.Is(err, model.ErrContentRequired),
		errors.Is(err, model.ErrContentTooLong),
		errors.Is(err, model.ErrTitleTooLong),
		errors.Is(err, model.ErrTooManyImages),
		errors.Is(err, model.ErrInvalidImage),
		errors.Is(err, model.ErrParentMismatch):
		httputil.WriteBadRequest(w, err.Error())
	default:
		log.Printf("[ERROR] Comment handler %s: user=%s err=%v", op, userID, err)
		httputil.WriteInternalError(w, "Failed to "+op+" comment")
	}
}

func placeIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	placeID := chi.URLParam(r, "placeId")
	if !model.ValidPlaceID(placeID) {
		httputil.WriteBadRequest(w, "Invalid place ID")
		return "", false
	}
	return placeID, true
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
