package models

import (
	"slices"
	"time"
)

// EntityType is the kind of content a comment or feed item belongs to.
type EntityType string

const (
	EntityVideo EntityType = "video"
	EntityImage EntityType = "image"
)

// Collection returns the collection that stores entities of type t.
func (t EntityType) Collection() (Collection, bool) {
	switch t {
	case EntityVideo:
		return CollectionVideos, true
	case EntityImage:
		return CollectionImages, true
	}
	return "", false
}

// Likes is the like state embedded in every likeable document.
// LikeCount is denormalized and may lag LikedBy until the next reconciliation.
type Likes struct {
	LikedBy   []string `json:"likedBy"`
	LikeCount int      `json:"likeCount"`
}

// IsLikedBy reports whether userID is in LikedBy.
func (l Likes) IsLikedBy(userID string) bool {
	return slices.Contains(l.LikedBy, userID)
}

// Normalized returns a copy with duplicates removed and LikeCount derived from LikedBy.
func (l Likes) Normalized() Likes {
	out := Likes{LikedBy: make([]string, 0, len(l.LikedBy))}
	seen := make(map[string]struct{}, len(l.LikedBy))
	for _, id := range l.LikedBy {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out.LikedBy = append(out.LikedBy, id)
	}
	out.LikeCount = len(out.LikedBy)
	return out
}

// User is a profile document. Follow edges are stored on both endpoints.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"displayName"`
	Avatar       string    `json:"avatar"`
	Bio          string    `json:"bio"`
	FollowingIDs []string  `json:"followingIds"`
	FollowerIDs  []string  `json:"followerIds"`
	CreatedAt    time.Time `json:"createdAt"`
}

// IsFollowing reports whether u follows userID.
func (u *User) IsFollowing(userID string) bool {
	return slices.Contains(u.FollowingIDs, userID)
}

// HasFollower reports whether userID follows u.
func (u *User) HasFollower(userID string) bool {
	return slices.Contains(u.FollowerIDs, userID)
}

// Video is a short-video post.
type Video struct {
	ID           string `json:"id"`
	UserID       string `json:"userId"`
	VideoURL     string `json:"videoUrl"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	Caption      string `json:"caption"`
	MusicID      string `json:"musicId,omitempty"`
	Likes
	CommentCount int       `json:"commentCount"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Image is a still-image post.
type Image struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	ImageURL string `json:"imageUrl"`
	Caption  string `json:"caption"`
	Likes
	CommentCount int       `json:"commentCount"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Comment belongs to a video or image. A non-nil ParentID makes it a reply;
// replies are only ever one level deep.
type Comment struct {
	ID         string     `json:"id"`
	EntityID   string     `json:"entityId"`
	EntityType EntityType `json:"entityType"`
	ParentID   *string    `json:"parentId"`
	AuthorID   string     `json:"authorId"`
	Content    string     `json:"content"`
	Likes
	ReplyCount int       `json:"replyCount"`
	CreatedAt  time.Time `json:"createdAt"`
}

// IsReply reports whether c has a parent comment.
func (c *Comment) IsReply() bool {
	return c.ParentID != nil && *c.ParentID != ""
}

// NotificationType classifies what triggered a notification.
type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
	NotificationReply   NotificationType = "reply"
	NotificationFollow  NotificationType = "follow"
)

// Notification is created as a side effect of another user's action.
type Notification struct {
	ID         string           `json:"id"`
	ToUserID   string           `json:"toUserId"`
	FromUserID string           `json:"fromUserId"`
	Type       NotificationType `json:"type"`
	TargetID   string           `json:"targetId"`
	IsRead     bool             `json:"isRead"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// Music is a soundtrack that can be attached to a video.
type Music struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Artist          string    `json:"artist"`
	URL             string    `json:"url"`
	DurationSeconds int       `json:"durationSeconds"`
	CreatedAt       time.Time `json:"createdAt"`
}
