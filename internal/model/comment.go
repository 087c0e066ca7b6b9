package model

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"
)

// Comment levels. Only two are supported: replies cannot be replied to.
const (
	LevelRoot  = 0
	LevelReply = 1
)

// Comment is a comment left on a place (business).
// Roots carry their replies; replies never do.
type Comment struct {
	ID              string         `db:"id" json:"id"`
	UserID          *string        `db:"user_id" json:"user_id"`
	Username        *string        `db:"username" json:"username"`
	AvatarURL       *string        `db:"avatar_url" json:"avatar_url"`
	BusinessID      string         `db:"business_id" json:"business_id"`
	ParentCommentID *string        `db:"parent_comment_id" json:"parent_comment_id"`
	CommentLevel    int            `db:"comment_level" json:"comment_level"`
	Title           *string        `db:"title" json:"title"`
	Content         string         `db:"content" json:"content"`
	ImagePaths      pq.StringArray `db:"image_paths" json:"image_paths"`
	IsActive        bool           `db:"is_active" json:"is_active"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
	ReplyCount      int            `db:"reply_count" json:"reply_count"`
	IsLiked         bool           `db:"is_liked" json:"is_liked"`
	Likes           int            `db:"likes" json:"likes"`
	Replies         []Comment      `db:"-" json:"replies"`
}

// IsRoot reports whether c is a top-level comment.
func (c *Comment) IsRoot() bool {
	return c.CommentLevel == LevelRoot
}

// IsOwnedBy reports whether userID wrote c.
func (c *Comment) IsOwnedBy(userID string) bool {
	return c.UserID != nil && *c.UserID == userID
}

// commentFields has Comment's fields without its methods.
type commentFields Comment

// MarshalJSON writes replies as a list on every root, empty when it has none,
// and leaves the field out of replies.
func (c Comment) MarshalJSON() ([]byte, error) {
	if c.CommentLevel != LevelRoot {
		return json.Marshal(struct {
			commentFields
			Replies []Comment `json:"replies,omitempty"`
		}{commentFields: commentFields(c)})
	}
	if c.Replies == nil {
		c.Replies = []Comment{}
	}
	return json.Marshal(commentFields(c))
}

// CreateCommentRequest is the request body for creating a comment.
type CreateCommentRequest struct {
	Content         string   `json:"content"`
	Title           *string  `json:"title,omitempty"`
	ImagePaths      []string `json:"image_paths,omitempty"`
	ParentCommentID *string  `json:"parent_comment_id,omitempty"`
}

// UpdateCommentRequest is the request body for editing a comment.
type UpdateCommentRequest struct {
	Content    string   `json:"content"`
	Title      *string  `json:"title,omitempty"`
	ImagePaths []string `json:"image_paths,omitempty"`
}

// CommentThreadResponse is one page of a place's structured comment thread.
// Comments holds every root loaded so far, not just the latest page.
type CommentThreadResponse struct {
	Comments   []Comment `json:"comments"`
	HasMore    bool      `json:"has_more"`
	NextOffset int       `json:"next_offset"`
}

// CommentCountResponse is the active comment total of a place.
type CommentCountResponse struct {
	BusinessID string `json:"business_id"`
	Count      int    `json:"count"`
}

// DeactivateResponse reports how many comments a soft delete removed.
type DeactivateResponse struct {
	Removed int `json:"removed"`
}

// LikeResponse is the viewer's like state after a toggle.
type LikeResponse struct {
	CommentID string `json:"comment_id"`
	IsLiked   bool   `json:"is_liked"`
}

// Comment constraints
const (
	MaxCommentLength = 2000
	MaxTitleLength   = 100
	MaxCommentImages = 5
	DefaultPageLimit = 20
	MaxPageLimit     = 50
)

// Comment errors
var (
	ErrCommentNotFound = errors.New("comment not found")
	ErrNotCommentOwner = errors.New("not the owner of this comment")
	ErrContentRequired = errors.New("comment content is required")
	ErrContentTooLong  = errors.New("comment content too long")
	ErrTitleTooLong    = errors.New("comment title too long")
	ErrTooManyImages   = errors.New("too many images attached")
	ErrParentMismatch  = errors.New("parent comment belongs to another place")
	ErrInvalidID       = errors.New("invalid id")
	ErrInvalidImage    = errors.New("image path does not belong to this place")
)

// ValidPlaceID reports whether id can name a place. Place ids are external
// business ids and end up in cache keys and object paths.
func ValidPlaceID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// AttachmentPrefix is the object key prefix of the images userID uploaded
// for comments on a place.
func AttachmentPrefix(placeID, userID string) string {
	return AttachmentFolder + "/" + placeID + "/" + userID + "/"
}
