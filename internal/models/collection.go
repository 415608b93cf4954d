// Package models contains data structures for the application's domain models.
package models

// UserIDHeader carries the acting user's id between client and API. It
// scopes logs and rate limits; it is not an authentication mechanism.
const UserIDHeader = "X-User-ID"

// Collection names a JSON document collection exposed by the API.
type Collection string

const (
	CollectionUsers         Collection = "users"
	CollectionVideos        Collection = "videos"
	CollectionImages        Collection = "images"
	CollectionComments      Collection = "comments"
	CollectionNotifications Collection = "notifications"
	CollectionMusic         Collection = "music"
)

// Collections lists every collection the API serves.
var Collections = []Collection{
	CollectionUsers,
	CollectionVideos,
	CollectionImages,
	CollectionComments,
	CollectionNotifications,
	CollectionMusic,
}

// ParseCollection returns the collection named s, or false if it is not served.
func ParseCollection(s string) (Collection, bool) {
	for _, c := range Collections {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

func (c Collection) String() string { return string(c) }

// Likeable reports whether documents in c carry likedBy/likeCount.
func (c Collection) Likeable() bool {
	switch c {
	case CollectionVideos, CollectionImages, CollectionComments:
		return true
	}
	return false
}
