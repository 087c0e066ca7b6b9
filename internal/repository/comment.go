package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/yong-jelly/usemap-sub002/internal/model"
)

// commentColumns selects a comment with its author profile and the viewer's
// like state. $viewer is compared as text so anonymous ("") never matches.
const commentColumns = `
	c.id, c.user_id, p.nickname AS username, p.profile_image_url AS avatar_url,
	c.business_id, c.parent_comment_id, c.comment_level, c.title, c.content,
	c.image_paths, c.is_active, c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM tbl_comment_for_place r
	  WHERE r.parent_comment_id = c.id AND r.is_active) AS reply_count,
	(SELECT COUNT(*) FROM tbl_comment_like_for_place l
	  WHERE l.comment_id = c.id) AS likes,
	EXISTS(SELECT 1 FROM tbl_comment_like_for_place l
	  WHERE l.comment_id = c.id AND l.user_id::text = %s) AS is_liked
`

// rootPageOrder pages roots in the order thread.Structure sorts them: newest
// first, ties by ascending id. uuid compares bytewise, like its lowercase text.
const rootPageOrder = "created_at DESC, id ASC"

type commentRepository struct {
	db *sqlx.DB
}

func NewCommentRepository(db *sqlx.DB) CommentRepository {
	return &commentRepository{db: db}
}

// ListByPlace returns one page of active roots for a place plus every active
// reply under them, unordered. hasMore reports whether older roots remain.
func (r *commentRepository) ListByPlace(ctx context.Context, placeID, viewerID string, limit, offset int) ([]model.Comment, bool, error) {
	query := fmt.Sprintf(`
		WITH roots AS (
			SELECT id FROM tbl_comment_for_place
			WHERE business_id = $1 AND comment_level = 0 AND is_active
			ORDER BY %s
			LIMIT $2 OFFSET $3
		)
		SELECT %s
		FROM tbl_comment_for_place c
		LEFT JOIN tbl_user_profile p ON p.user_id = c.user_id
		WHERE c.is_active
		  AND (c.id IN (SELECT id FROM roots) OR c.parent_comment_id IN (SELECT id FROM roots))
	`, rootPageOrder, fmt.Sprintf(commentColumns, "$4"))

	var comments []model.Comment
	if err := r.db.SelectContext(ctx, &comments, query, placeID, limit, offset, viewerID); err != nil {
		return nil, false, fmt.Errorf("list comments: %w", err)
	}

	var totalRoots int
	err := r.db.GetContext(ctx, &totalRoots, `
		SELECT COUNT(*) FROM tbl_comment_for_place
		WHERE business_id = $1 AND comment_level = 0 AND is_active
	`, placeID)
	if err != nil {
		return nil, false, fmt.Errorf("count root comments: %w", err)
	}

	return comments, offset+limit < totalRoots, nil
}

// GetByID retrieves a single comment, active or not, as seen by viewerID.
func (r *commentRepository) GetByID(ctx context.Context, commentID, viewerID string) (*model.Comment, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM tbl_comment_for_place c
		LEFT JOIN tbl_user_profile p ON p.user_id = c.user_id
		WHERE c.id = $1
	`, fmt.Sprintf(commentColumns, "$2"))

	var comment model.Comment
	err := r.db.GetContext(ctx, &comment, query, commentID, viewerID)
	if err == sql.ErrNoRows {
		return nil, model.ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return &comment, nil
}

// Create inserts a new comment authored by userID. The level follows from
// whether a parent is given.
func (r *commentRepository) Create(ctx context.Context, userID string, in NewComment) (*model.Comment, error) {
	level := model.LevelRoot
	if in.ParentCommentID != nil {
		level = model.LevelReply
	}

	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tbl_comment_for_place
			(id, business_id, user_id, parent_comment_id, comment_level, title, content, image_paths)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, id, in.BusinessID, userID, in.ParentCommentID, level, in.Title, in.Content, pq.Array(in.ImagePaths))
	if err != nil {
		return nil, fmt.Errorf("insert comment: %w", err)
	}

	return r.GetByID(ctx, id, userID)
}

// Update replaces the payload of an active comment. Only the owner can update.
func (r *commentRepository) Update(ctx context.Context, commentID, userID string, in CommentPayload) (*model.Comment, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tbl_comment_for_place
		SET content = $1, title = $2, image_paths = $3, updated_at = NOW()
		WHERE id = $4 AND user_id::text = $5 AND is_active
	`, in.Content, in.Title, pq.Array(in.ImagePaths), commentID, userID)
	if err != nil {
		return nil, fmt.Errorf("update comment: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		// Check if comment exists but belongs to different user
		existing, err := r.GetByID(ctx, commentID, userID)
		if err != nil {
			return nil, err
		}
		if !existing.IsActive {
			return nil, model.ErrCommentNotFound
		}
		return nil, model.ErrNotCommentOwner
	}

	return r.GetByID(ctx, commentID, userID)
}

// Deactivate soft-deletes a comment and, for a root, all of its replies.
// Only the owner can deactivate.
func (r *commentRepository) Deactivate(ctx context.Context, commentID, userID string) (*DeactivateResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var target struct {
		BusinessID string  `db:"business_id"`
		UserID     *string `db:"user_id"`
		IsActive   bool    `db:"is_active"`
	}
	err = tx.GetContext(ctx, &target, `
		SELECT business_id, user_id, is_active
		FROM tbl_comment_for_place WHERE id = $1
		FOR UPDATE
	`, commentID)
	if err == sql.ErrNoRows {
		return nil, model.ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	if !target.IsActive {
		return nil, model.ErrCommentNotFound
	}
	if target.UserID == nil || *target.UserID != userID {
		return nil, model.ErrNotCommentOwner
	}

	// Replies of a reply do not exist, so this covers both levels.
	var removed []struct {
		ID         string         `db:"id"`
		ImagePaths pq.StringArray `db:"image_paths"`
	}
	err = tx.SelectContext(ctx, &removed, `
		UPDATE tbl_comment_for_place
		SET is_active = FALSE, updated_at = NOW()
		WHERE (id = $1 OR parent_comment_id = $1) AND is_active
		RETURNING id, image_paths
	`, commentID)
	if err != nil {
		return nil, fmt.Errorf("deactivate comments: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	result := &DeactivateResult{
		PlaceID: target.BusinessID,
		Removed: len(removed),
	}
	for _, row := range removed {
		result.ImagePaths = append(result.ImagePaths, row.ImagePaths...)
	}
	return result, nil
}

// ToggleLike flips userID's like on an active comment and returns the new
// state along with the comment's place.
func (r *commentRepository) ToggleLike(ctx context.Context, commentID, userID string) (string, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var placeID string
	err = tx.GetContext(ctx, &placeID, `
		SELECT business_id FROM tbl_comment_for_place WHERE id = $1 AND is_active
	`, commentID)
	if err == sql.ErrNoRows {
		return "", false, model.ErrCommentNotFound
	}
	if err != nil {
		return "", false, fmt.Errorf("get comment: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM tbl_comment_like_for_place WHERE comment_id = $1 AND user_id = $2
	`, commentID, userID)
	if err != nil {
		return "", false, fmt.Errorf("delete like: %w", err)
	}

	liked := false
	if n, _ := res.RowsAffected(); n == 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO tbl_comment_like_for_place (comment_id, user_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, commentID, userID)
		if err != nil {
			return "", false, fmt.Errorf("insert like: %w", err)
		}
		liked = true
	}

	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("commit transaction: %w", err)
	}
	return placeID, liked, nil
}

// CountByPlace returns how many active comments (roots and replies) a place has.
func (r *commentRepository) CountByPlace(ctx context.Context, placeID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM tbl_comment_for_place WHERE business_id = $1 AND is_active
	`, placeID)
	if err != nil {
		return 0, fmt.Errorf("count comments: %w", err)
	}
	return count, nil
}
