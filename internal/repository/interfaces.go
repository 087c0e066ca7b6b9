package repository

import (
	"context"

	"github.com/yong-jelly/usemap-sub002/internal/model"
)

// CommentPayload is the editable part of a comment.
type CommentPayload struct {
	Content    string
	Title      *string
	ImagePaths []string
}

// NewComment is a comment about to be inserted.
type NewComment struct {
	CommentPayload
	BusinessID      string
	ParentCommentID *string
}

// DeactivateResult describes what a soft delete took out.
type DeactivateResult struct {
	PlaceID    string
	Removed    int      // the comment plus any replies under it
	ImagePaths []string // attachments of every removed comment
}

type CommentRepository interface {
	ListByPlace(ctx context.Context, placeID, viewerID string, limit, offset int) ([]model.Comment, bool, error)
	GetByID(ctx context.Context, commentID, viewerID string) (*model.Comment, error)
	Create(ctx context.Context, userID string, in NewComment) (*model.Comment, error)
	Update(ctx context.Context, commentID, userID string, in CommentPayload) (*model.Comment, error)
	Deactivate(ctx context.Context, commentID, userID string) (*DeactivateResult, error)
	ToggleLike(ctx context.Context, commentID, userID string) (placeID string, liked bool, err error)
	CountByPlace(ctx context.Context, placeID string) (int, error)
}
