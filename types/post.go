package types

import "time"

// Post is a blog post. Every field except Title and Body is fixed when the
// post is created.
type Post struct {
	// ID is the server-assigned identifier of the post.
	ID int64 `json:"post_id" db:"post_id"`

	// CreatorUserID is the owner of the post.
	CreatorUserID string `json:"creator_user_id" db:"creator_user_id"`

	// CreatorName is the creator's display name as it was when the post was
	// written. It is not updated if the user later changes their name.
	CreatorName string `json:"creator_name" db:"creator_name"`

	Title string `json:"title" db:"title"`
	Body  string `json:"body" db:"body"`

	// CreatedAt is assigned by the store on insert.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
