// Package thread turns flat comment listings into the two-level thread a
// place page renders, and applies local edits to that thread without a
// re-fetch.
//
// A thread is the root sequence: level-0 comments newest first, each holding
// its level-1 replies oldest first, with ReplyCount equal to len(Replies).
// Every function here is pure. Inputs are never modified; the returned thread
// may share unchanged comments with the input.
//
// Records that cannot be placed (a reply whose parent is not loaded, a reply
// without a parent, anything deeper than level 1) are dropped rather than
// reported. They are normal under partial pagination and racing writes.
//
// Structure is a full rebuild from the merged flat set. Feeding it a page
// fetched before a local Remove will bring the removed comment back; callers
// cannot be told apart from an authoritative refresh, so that is left to them.
package thread

import (
	"sort"
	"time"

	"github.com/yong-jelly/usemap-sub002/internal/model"
)

// now is swapped in tests.
var now = time.Now

// Structure merges a freshly fetched flat page into an existing thread and
// rebuilds it. Entries in flat replace entries in existing with the same id.
func Structure(flat, existing []model.Comment) []model.Comment {
	byID := make(map[string]model.Comment, len(flat)+len(existing))
	for _, c := range Flatten(existing) {
		byID[c.ID] = c
	}
	for _, c := range flat {
		c.Replies = nil
		byID[c.ID] = c
	}

	roots := make([]model.Comment, 0, len(byID))
	replies := make(map[string][]model.Comment)
	for _, c := range byID {
		switch {
		case c.CommentLevel == model.LevelRoot:
			roots = append(roots, c)
		case c.CommentLevel == model.LevelReply && c.ParentCommentID != nil:
			replies[*c.ParentCommentID] = append(replies[*c.ParentCommentID], c)
		}
	}

	for i := range roots {
		rs := replies[roots[i].ID]
		if rs == nil {
			rs = []model.Comment{}
		}
		sortOldestFirst(rs)
		roots[i].Replies = rs
		roots[i].ReplyCount = len(rs)
	}
	sortNewestFirst(roots)
	return roots
}

// Flatten returns every root and reply in tree as a flat list with replies
// detached from their roots.
func Flatten(tree []model.Comment) []model.Comment {
	out := make([]model.Comment, 0, len(tree))
	for _, root := range tree {
		replies := root.Replies
		root.Replies = nil
		out = append(out, root)
		for _, r := range replies {
			r.Replies = nil
			out = append(out, r)
		}
	}
	return out
}

// Find returns the comment with id at either level.
func Find(tree []model.Comment, id string) (model.Comment, bool) {
	for _, root := range tree {
		if root.ID == id {
			return root, true
		}
		for _, r := range root.Replies {
			if r.ID == id {
				return r, true
			}
		}
	}
	return model.Comment{}, false
}

// InsertRoot puts a newly created root at the front of the thread.
// New comments are always the newest, so no resort is needed.
func InsertRoot(tree []model.Comment, root model.Comment) []model.Comment {
	root.Replies = []model.Comment{}
	root.ReplyCount = 0

	out := make([]model.Comment, 0, len(tree)+1)
	out = append(out, root)
	return append(out, tree...)
}

// InsertReply appends a newly created reply to its parent root.
// It reports false, returning tree as is, when the parent is not loaded.
func InsertReply(tree []model.Comment, reply model.Comment) ([]model.Comment, bool) {
	if reply.ParentCommentID == nil {
		return tree, false
	}
	idx := indexOf(tree, *reply.ParentCommentID)
	if idx < 0 {
		return tree, false
	}

	reply.Replies = nil
	out := clone(tree)
	parent := out[idx]
	rs := make([]model.Comment, 0, len(parent.Replies)+1)
	rs = append(rs, parent.Replies...)
	parent.Replies = append(rs, reply)
	parent.ReplyCount++
	out[idx] = parent
	return out, true
}

// Remove deletes the comment with id. A root takes its replies with it.
// The returned count is how many comments left the thread: 1+len(replies)
// for a root, 1 for a reply, 0 when id is not present.
func Remove(tree []model.Comment, id string) ([]model.Comment, int) {
	if idx := indexOf(tree, id); idx >= 0 {
		removed := 1 + len(tree[idx].Replies)
		out := make([]model.Comment, 0, len(tree)-1)
		out = append(out, tree[:idx]...)
		return append(out, tree[idx+1:]...), removed
	}

	for i, root := range tree {
		j := indexOf(root.Replies, id)
		if j < 0 {
			continue
		}
		rs := make([]model.Comment, 0, len(root.Replies)-1)
		rs = append(rs, root.Replies[:j]...)
		root.Replies = append(rs, root.Replies[j+1:]...)
		root.ReplyCount--

		out := clone(tree)
		out[i] = root
		return out, 1
	}
	return tree, 0
}

// ToggleLike sets the viewer's like state on the comment with id.
// Like counts are tracked server side and are left alone.
func ToggleLike(tree []model.Comment, id string, liked bool) []model.Comment {
	return update(tree, id, func(c *model.Comment) {
		c.IsLiked = liked
	})
}

// Edit copies the editable payload of updated onto the comment with the
// same id. Level, parent, replies, reply count and like state are kept.
func Edit(tree []model.Comment, updated model.Comment) []model.Comment {
	editedAt := updated.UpdatedAt
	if editedAt.IsZero() {
		editedAt = now()
	}
	return update(tree, updated.ID, func(c *model.Comment) {
		c.Content = updated.Content
		c.Title = updated.Title
		c.ImagePaths = updated.ImagePaths
		c.UpdatedAt = editedAt
	})
}

// update applies fn to a copy of the comment with id, copying only the
// branch it lives on.
func update(tree []model.Comment, id string, fn func(*model.Comment)) []model.Comment {
	if idx := indexOf(tree, id); idx >= 0 {
		out := clone(tree)
		fn(&out[idx])
		return out
	}

	for i, root := range tree {
		j := indexOf(root.Replies, id)
		if j < 0 {
			continue
		}
		root.Replies = clone(root.Replies)
		fn(&root.Replies[j])

		out := clone(tree)
		out[i] = root
		return out
	}
	return tree
}

func indexOf(list []model.Comment, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func clone(list []model.Comment) []model.Comment {
	out := make([]model.Comment, len(list))
	copy(out, list)
	return out
}

// Ties on created_at fall back to id so a rebuild is deterministic.
func sortNewestFirst(list []model.Comment) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
}

func sortOldestFirst(list []model.Comment) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
}
