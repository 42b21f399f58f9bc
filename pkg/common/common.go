package common

import (
	"time"

	"github.com/google/uuid"
)

// Session represents one social-media thread: the owner's post plus the
// ordered reactions to it. A session is the unit of graph construction.
//
// TopicVector holds the per-topic weights of the thread in the fixed topic
// order used by the session graph.
type Session struct {
	UnitID              int64     `json:"unit_id"`
	PostedAt            time.Time `json:"session_posted_at"`
	OwnerUserName       string    `json:"owner_user_name"`
	OwnerComment        string    `json:"owner_comment"`
	NumLikes            int       `json:"session_likes"`
	NumBullyingComments int       `json:"num_bullying_comments"`
	NumComments         int       `json:"num_comments"`
	MainVictim          string    `json:"main_victim"`
	TopicVector         []int     `json:"topic_vector"`
}

// Comment represents one labeled reaction within a session. Role is the raw
// role label; it is validated when the comment is turned into a role event.
type Comment struct {
	UnitID          int64      `json:"unit_id"`
	CommentID       uuid.UUID  `json:"comment_id"`
	Author          string     `json:"comment_author"`
	CreatedAt       *time.Time `json:"comment_created_at"`
	Content         string     `json:"comment_content"`
	IsCyberbullying bool       `json:"is_cyberbullying"`
	Role            string     `json:"role"`
	Severity        float64    `json:"severity"`
}
