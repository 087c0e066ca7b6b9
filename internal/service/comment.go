package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/yong-jelly/usemap-sub002/internal/cache"
	"github.com/yong-jelly/usemap-sub002/internal/metrics"
	"github.com/yong-jelly/usemap-sub002/internal/model"
	"github.com/yong-jelly/usemap-sub002/internal/queue"
	"github.com/yong-jelly/usemap-sub002/internal/repository"
	"github.com/yong-jelly/usemap-sub002/internal/thread"
)

// Outcomes of a local thread update, used as the metrics label.
const (
	outcomeApplied       = "applied"
	outcomeNoThread      = "no_thread"
	outcomeNotFound      = "not_found"
	outcomeParentMissing = "parent_missing"
)

// CommentService owns the comment threads of places. Every write goes to the
// database first; the viewer's cached thread is then patched in place instead
// of being re-fetched, and an event tells workers to drop everyone else's.
//
// threads, counts and publisher may be nil. Without them the service still
// serves correct pages, just without caching or fan-out.
type CommentService struct {
	commentRepo repository.CommentRepository
	threads     cache.ThreadCache
	counts      cache.CountCache
	publisher   queue.Publisher
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	threads cache.ThreadCache,
	counts cache.CountCache,
	publisher queue.Publisher,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		threads:     threads,
		counts:      counts,
		publisher:   publisher,
	}
}

// List returns the structured thread of a place as seen by viewerID ("" for
// anonymous). Offset 0 starts a fresh thread; later offsets merge the page
// into the roots the viewer already loaded. Anonymous threads are not cached.
func (s *CommentService) List(ctx context.Context, placeID, viewerID string, limit, offset int) (*model.CommentThreadResponse, error) {
	if limit <= 0 {
		limit = model.DefaultPageLimit
	}
	if limit > model.MaxPageLimit {
		limit = model.MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}

	fetchLimit, fetchOffset := limit, offset
	var existing []model.Comment
	if offset > 0 {
		cached, found := s.cachedThread(ctx, placeID, viewerID)
		if found {
			existing = cached
		} else {
			// The earlier pages are gone (expired, invalidated, or an
			// anonymous viewer); fetch them again with this one.
			fetchLimit, fetchOffset = offset+limit, 0
		}
	}

	page, hasMore, err := s.commentRepo.ListByPlace(ctx, placeID, viewerID, fetchLimit, fetchOffset)
	if err != nil {
		return nil, err
	}

	tree := thread.Structure(page, existing)
	s.storeThread(ctx, placeID, viewerID, tree)

	return &model.CommentThreadResponse{
		Comments:   tree,
		HasMore:    hasMore,
		NextOffset: fetchOffset + countRoots(page),
	}, nil
}

// Create adds a root comment, or a reply when ParentCommentID is set.
// Replying to a reply attaches to that reply's root and mentions its author,
// since threads only go two levels deep.
func (s *CommentService) Create(ctx context.Context, placeID, viewerID string, req model.CreateCommentRequest) (*model.Comment, error) {
	content, err := validatePayload(placeID, viewerID, req.Content, req.Title, req.ImagePaths)
	if err != nil {
		return nil, err
	}

	in := repository.NewComment{
		CommentPayload: repository.CommentPayload{
			Content:    content,
			Title:      req.Title,
			ImagePaths: req.ImagePaths,
		},
		BusinessID: placeID,
	}

	if req.ParentCommentID != nil {
		rootID, mention, err := s.resolveParent(ctx, placeID, viewerID, *req.ParentCommentID)
		if err != nil {
			return nil, err
		}
		in.ParentCommentID = &rootID
		if mention != "" {
			in.Content = "@" + mention + " " + in.Content
			if utf8.RuneCountInString(in.Content) > model.MaxCommentLength {
				return nil, model.ErrContentTooLong
			}
		}
	}

	comment, err := s.commentRepo.Create(ctx, viewerID, in)
	if err != nil {
		return nil, err
	}

	log.Printf("[CommentService] Create OK: place=%s comment=%s level=%d user=%s",
		placeID, comment.ID, comment.CommentLevel, viewerID)

	if comment.IsRoot() {
		s.updateThread(ctx, placeID, viewerID, "insert_root", func(tree []model.Comment) ([]model.Comment, string) {
			return thread.InsertRoot(tree, *comment), outcomeApplied
		})
	} else {
		s.updateThread(ctx, placeID, viewerID, "insert_reply", func(tree []model.Comment) ([]model.Comment, string) {
			out, ok := thread.InsertReply(tree, *comment)
			if !ok {
				return tree, outcomeParentMissing
			}
			return out, outcomeApplied
		})
	}

	s.dropCount(ctx, placeID)
	s.publish(ctx, queue.NewCommentCreatedEvent(placeID, comment.ID, viewerID))
	return comment, nil
}

// Update replaces the content, title and images of the viewer's own comment.
func (s *CommentService) Update(ctx context.Context, commentID, viewerID string, req model.UpdateCommentRequest) (*model.Comment, error) {
	if _, err := uuid.Parse(commentID); err != nil {
		return nil, model.ErrInvalidID
	}

	existing, err := s.commentRepo.GetByID(ctx, commentID, viewerID)
	if err != nil {
		return nil, err
	}
	if !existing.IsActive {
		return nil, model.ErrCommentNotFound
	}
	if !existing.IsOwnedBy(viewerID) {
		return nil, model.ErrNotCommentOwner
	}

	content, err := validatePayload(existing.BusinessID, viewerID, req.Content, req.Title, req.ImagePaths)
	if err != nil {
		return nil, err
	}

	comment, err := s.commentRepo.Update(ctx, commentID, viewerID, repository.CommentPayload{
		Content:    content,
		Title:      req.Title,
		ImagePaths: req.ImagePaths,
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[CommentService] Update OK: place=%s comment=%s user=%s", comment.BusinessID, commentID, viewerID)

	s.updateThread(ctx, comment.BusinessID, viewerID, "edit", func(tree []model.Comment) ([]model.Comment, string) {
		if _, ok := thread.Find(tree, commentID); !ok {
			return tree, outcomeNotFound
		}
		return thread.Edit(tree, *comment), outcomeApplied
	})

	dropped := droppedImages(existing.ImagePaths, comment.ImagePaths)
	s.publish(ctx, queue.NewCommentUpdatedEvent(comment.BusinessID, commentID, viewerID, dropped))
	return comment, nil
}

// Deactivate soft-deletes the viewer's own comment. Deleting a root takes its
// replies with it; the response says how many comments went.
func (s *CommentService) Deactivate(ctx context.Context, commentID, viewerID string) (*model.DeactivateResponse, error) {
	if _, err := uuid.Parse(commentID); err != nil {
		return nil, model.ErrInvalidID
	}

	res, err := s.commentRepo.Deactivate(ctx, commentID, viewerID)
	if err != nil {
		return nil, err
	}

	log.Printf("[CommentService] Deactivate OK: place=%s comment=%s removed=%d user=%s",
		res.PlaceID, commentID, res.Removed, viewerID)

	s.updateThread(ctx, res.PlaceID, viewerID, "remove", func(tree []model.Comment) ([]model.Comment, string) {
		out, n := thread.Remove(tree, commentID)
		if n == 0 {
			return tree, outcomeNotFound
		}
		if n != res.Removed {
			log.Printf("[CommentService] Thread drift: place=%s comment=%s cached=%d db=%d",
				res.PlaceID, commentID, n, res.Removed)
		}
		return out, outcomeApplied
	})

	s.dropCount(ctx, res.PlaceID)
	s.publish(ctx, queue.NewCommentDeactivatedEvent(res.PlaceID, commentID, viewerID, res.Removed, res.ImagePaths))
	return &model.DeactivateResponse{Removed: res.Removed}, nil
}

// ToggleLike flips the viewer's like on a comment.
func (s *CommentService) ToggleLike(ctx context.Context, commentID, viewerID string) (*model.LikeResponse, error) {
	if _, err := uuid.Parse(commentID); err != nil {
		return nil, model.ErrInvalidID
	}

	placeID, liked, err := s.commentRepo.ToggleLike(ctx, commentID, viewerID)
	if err != nil {
		return nil, err
	}

	s.updateThread(ctx, placeID, viewerID, "toggle_like", func(tree []model.Comment) ([]model.Comment, string) {
		if _, ok := thread.Find(tree, commentID); !ok {
			return tree, outcomeNotFound
		}
		return thread.ToggleLike(tree, commentID, liked), outcomeApplied
	})

	return &model.LikeResponse{CommentID: commentID, IsLiked: liked}, nil
}

// Count returns how many active comments a place has, roots and replies.
func (s *CommentService) Count(ctx context.Context, placeID string) (*model.CommentCountResponse, error) {
	if s.counts != nil {
		n, found, err := s.counts.Get(ctx, placeID)
		if err != nil {
			log.Printf("[CommentService] Count cache read FAILED: place=%s err=%v", placeID, err)
		} else if found {
			return &model.CommentCountResponse{BusinessID: placeID, Count: n}, nil
		}
	}

	n, err := s.commentRepo.CountByPlace(ctx, placeID)
	if err != nil {
		return nil, err
	}

	if s.counts != nil {
		if err := s.counts.Set(ctx, placeID, n); err != nil {
			log.Printf("[CommentService] Count cache write FAILED: place=%s err=%v", placeID, err)
		}
	}
	return &model.CommentCountResponse{BusinessID: placeID, Count: n}, nil
}

// resolveParent finds the root a new reply attaches to. mention is the
// username to prefix when the target was itself a reply.
func (s *CommentService) resolveParent(ctx context.Context, placeID, viewerID, parentID string) (rootID, mention string, err error) {
	if _, err := uuid.Parse(parentID); err != nil {
		return "", "", model.ErrInvalidID
	}

	parent, err := s.commentRepo.GetByID(ctx, parentID, viewerID)
	if err != nil {
		return "", "", err
	}
	if !parent.IsActive {
		return "", "", model.ErrCommentNotFound
	}
	if parent.BusinessID != placeID {
		return "", "", model.ErrParentMismatch
	}

	if parent.IsRoot() {
		return parent.ID, "", nil
	}
	if parent.ParentCommentID == nil {
		return "", "", fmt.Errorf("reply %s has no parent", parent.ID)
	}
	if parent.Username != nil {
		mention = *parent.Username
	}
	return *parent.ParentCommentID, mention, nil
}

// updateThread patches the viewer's cached thread with fn. A viewer with no
// cached thread is left alone; the next List builds one.
func (s *CommentService) updateThread(ctx context.Context, placeID, viewerID, op string, fn func([]model.Comment) ([]model.Comment, string)) {
	if s.threads == nil || viewerID == "" {
		return
	}

	tree, found, err := s.threads.Get(ctx, placeID, viewerID)
	if err != nil {
		metrics.ThreadCacheLookups.WithLabelValues("error").Inc()
		log.Printf("[CommentService] Thread read FAILED: op=%s place=%s err=%v", op, placeID, err)
		return
	}
	if !found {
		metrics.ThreadUpdates.WithLabelValues(op, outcomeNoThread).Inc()
		return
	}

	updated, outcome := fn(tree)
	metrics.ThreadUpdates.WithLabelValues(op, outcome).Inc()
	if outcome != outcomeApplied {
		log.Printf("[CommentService] Thread %s skipped: place=%s viewer=%s outcome=%s", op, placeID, viewerID, outcome)
		return
	}

	if err := s.threads.Set(ctx, placeID, viewerID, updated); err != nil {
		log.Printf("[CommentService] Thread write FAILED: op=%s place=%s err=%v", op, placeID, err)
	}
}

// cachedThread returns the viewer's cached thread. found is false for
// anonymous viewers, misses and cache errors alike.
func (s *CommentService) cachedThread(ctx context.Context, placeID, viewerID string) ([]model.Comment, bool) {
	if s.threads == nil || viewerID == "" {
		return nil, false
	}

	tree, found, err := s.threads.Get(ctx, placeID, viewerID)
	switch {
	case err != nil:
		metrics.ThreadCacheLookups.WithLabelValues("error").Inc()
		log.Printf("[CommentService] Thread read FAILED: place=%s err=%v", placeID, err)
		return nil, false
	case !found:
		metrics.ThreadCacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.ThreadCacheLookups.WithLabelValues("hit").Inc()
	return tree, true
}

func (s *CommentService) storeThread(ctx context.Context, placeID, viewerID string, tree []model.Comment) {
	if s.threads == nil || viewerID == "" {
		return
	}
	if err := s.threads.Set(ctx, placeID, viewerID, tree); err != nil {
		log.Printf("[CommentService] Thread write FAILED: place=%s err=%v", placeID, err)
	}
}

func (s *CommentService) dropCount(ctx context.Context, placeID string) {
	if s.counts == nil {
		return
	}
	if err := s.counts.Delete(ctx, placeID); err != nil {
		log.Printf("[CommentService] Count cache delete FAILED: place=%s err=%v", placeID, err)
	}
}

// publish is best-effort: the write already committed.
func (s *CommentService) publish(ctx context.Context, event queue.CommentEvent) {
	if s.publisher == nil {
		return
	}
	if _, err := s.publisher.Publish(ctx, queue.StreamComments, event); err != nil {
		log.Printf("[CommentService] Publish FAILED: type=%s comment=%s err=%v", event.Type, event.CommentID, err)
	}
}

// validatePayload checks a comment body and returns the trimmed content.
// Lengths are counted in characters, not bytes.
func validatePayload(placeID, viewerID, content string, title *string, imagePaths []string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", model.ErrContentRequired
	}
	if utf8.RuneCountInString(content) > model.MaxCommentLength {
		return "", model.ErrContentTooLong
	}
	if title != nil && utf8.RuneCountInString(*title) > model.MaxTitleLength {
		return "", model.ErrTitleTooLong
	}
	if len(imagePaths) > model.MaxCommentImages {
		return "", model.ErrTooManyImages
	}

	// Attachments are deleted with the comment, so only the viewer's own
	// uploads for this place may be referenced.
	prefix := model.AttachmentPrefix(placeID, viewerID)
	for _, p := range imagePaths {
		if !strings.HasPrefix(p, prefix) || strings.Contains(p, "..") {
			return "", model.ErrInvalidImage
		}
	}
	return content, nil
}

func droppedImages(before, after []string) []string {
	keep := make(map[string]struct{}, len(after))
	for _, p := range after {
		keep[p] = struct{}{}
	}
	var dropped []string
	for _, p := range before {
		if _, ok := keep[p]; !ok {
			dropped = append(dropped, p)
		}
	}
	return dropped
}

func countRoots(page []model.Comment) int {
	n := 0
	for i := range page {
		if page[i].IsRoot() {
			n++
		}
	}
	return n
}
