// Package entity defines the core domain entities for the comment reply
// workflow: comments and posts fetched from the upstream API, generated
// responses, and the durable interaction records the engine appends.
package entity

import "time"

// Comment represents a single comment on a post, as returned by the
// upstream API. Comments are immutable once fetched; whether a comment
// has been handled is tracked by the history store, not on the entity.
type Comment struct {
	ID         string
	PostID     string
	AuthorID   string
	AuthorName string
	Text       string
	CreatedAt  time.Time
}

// Post is a snapshot of the post a comment belongs to. It is refetched
// for every comment-processing cycle rather than cached across polls.
type Post struct {
	ID        string
	AuthorID  string
	Content   string
	MediaURLs []string
	Metadata  map[string]string
	CreatedAt time.Time
}
