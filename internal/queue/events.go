package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types for the comment stream
const (
	EventCommentCreated     = "comment_created"
	EventCommentUpdated     = "comment_updated"
	EventCommentDeactivated = "comment_deactivated"
)

// Stream names
const (
	StreamComments = "stream:comments"
)

// Consumer group name for comment workers
const (
	ConsumerGroupComments = "comment_workers"
)

// CommentEvent represents a comment write published after it committed.
type CommentEvent struct {
	Type      string `json:"type"`      // EventCommentCreated, EventCommentUpdated, EventCommentDeactivated
	Timestamp int64  `json:"timestamp"` // Unix timestamp when event occurred

	PlaceID   string `json:"place_id"`
	CommentID string `json:"comment_id"`
	ActorID   string `json:"actor_id"`

	Removed    int      `json:"removed,omitempty"`     // deactivation only
	ImagePaths []string `json:"image_paths,omitempty"` // attachments no longer referenced
}

// NewCommentCreatedEvent creates an event for a new root or reply.
// Worker will drop other viewers' cached threads and the place total.
func NewCommentCreatedEvent(placeID, commentID, actorID string) CommentEvent {
	return CommentEvent{
		Type:      EventCommentCreated,
		Timestamp: time.Now().Unix(),
		PlaceID:   placeID,
		CommentID: commentID,
		ActorID:   actorID,
	}
}

// NewCommentUpdatedEvent creates an event for an edited comment.
// Worker will drop other viewers' cached threads and delete the attachments
// the edit dropped.
func NewCommentUpdatedEvent(placeID, commentID, actorID string, droppedImages []string) CommentEvent {
	return CommentEvent{
		Type:       EventCommentUpdated,
		Timestamp:  time.Now().Unix(),
		PlaceID:    placeID,
		CommentID:  commentID,
		ActorID:    actorID,
		ImagePaths: droppedImages,
	}
}

// NewCommentDeactivatedEvent creates an event for a soft delete.
// Worker will drop cached threads and totals and delete the attachments.
func NewCommentDeactivatedEvent(placeID, commentID, actorID string, removed int, imagePaths []string) CommentEvent {
	return CommentEvent{
		Type:       EventCommentDeactivated,
		Timestamp:  time.Now().Unix(),
		PlaceID:    placeID,
		CommentID:  commentID,
		ActorID:    actorID,
		Removed:    removed,
		ImagePaths: imagePaths,
	}
}

// ToMap converts the event to a map for Redis XADD.
// Redis Streams store field-value pairs, so we serialize to JSON in a "data" field.
func (e CommentEvent) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

// ParseCommentEvent parses a CommentEvent from Redis stream message values.
func ParseCommentEvent(values map[string]interface{}) (CommentEvent, error) {
	data, ok := values["data"].(string)
	if !ok {
		return CommentEvent{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event CommentEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return CommentEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}
