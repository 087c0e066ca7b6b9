package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestComment_MarshalJSON_RootAlwaysHasReplies(t *testing.T) {
	root := Comment{
		ID:         "r1",
		BusinessID: "1234567890",
		Content:    "first",
		IsActive:   true,
		CreatedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal([]Comment{root})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"replies":[]`) {
		t.Errorf("root without replies should carry an empty list, got %s", data)
	}
}

func TestComment_MarshalJSON_NestedReplies(t *testing.T) {
	parent := "r1"
	root := Comment{
		ID:         "r1",
		ReplyCount: 1,
		Replies: []Comment{{
			ID:              "c1",
			ParentCommentID: &parent,
			CommentLevel:    LevelReply,
			Content:         "reply",
		}},
	}

	data, err := json.Marshal(root)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	var replies []map[string]json.RawMessage
	if err := json.Unmarshal(decoded["replies"], &replies); err != nil {
		t.Fatalf("unmarshal replies: %v", err)
	}
	if len(replies) != 1 {
		t.Fatalf("replies = %d, want 1", len(replies))
	}
	if _, ok := replies[0]["replies"]; ok {
		t.Errorf("a reply should not carry a replies field, got %s", data)
	}
	if string(replies[0]["id"]) != `"c1"` {
		t.Errorf("reply id = %s, want \"c1\"", replies[0]["id"])
	}

	var back Comment
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("decode comment: %v", err)
	}
	if len(back.Replies) != 1 || back.Replies[0].ID != "c1" || back.ReplyCount != 1 {
		t.Errorf("decoded = %+v", back)
	}
}

func TestAttachmentPrefix(t *testing.T) {
	got := AttachmentPrefix("1234567890", "6f1c2a3e-1b4d-4c1a-9a57-1f0e6b1f2a01")
	want := "comments/1234567890/6f1c2a3e-1b4d-4c1a-9a57-1f0e6b1f2a01/"
	if got != want {
		t.Errorf("AttachmentPrefix = %q, want %q", got, want)
	}
}

func TestValidPlaceID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"1234567890", true},
		{"place_01-b", true},
		{"", false},
		{"../etc", false},
		{"a/b", false},
		{strings.Repeat("x", 65), false},
	}
	for _, tt := range tests {
		if got := ValidPlaceID(tt.id); got != tt.want {
			t.Errorf("ValidPlaceID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}
