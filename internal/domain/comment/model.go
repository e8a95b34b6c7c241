package comment

import (
	"time"

	"github.com/google/uuid"
)

// Subject types a comment may attach to.
const (
	SubjectOrder  = "order"
	SubjectResult = "result"
)

// AddInput carries the inputs of an add-comment command.
type AddInput struct {
	SubjectType string
	SubjectID   uuid.UUID
	Message     string
	AuthorID    uuid.UUID
}

// DeleteInput carries the inputs of a delete-comment command.
type DeleteInput struct {
	CommentID   uuid.UUID
	RequesterID uuid.UUID
}

// Comment is a free-text note on an order or a single result. Comments are
// soft-deleted; the row is kept with a deletion stamp.
type Comment struct {
	ID          uuid.UUID  `json:"id"`
	SubjectType string     `json:"subject_type"`
	SubjectID   uuid.UUID  `json:"subject_id"`
	Message     string     `json:"message"`
	AuthorID    uuid.UUID  `json:"author_id"`
	Deleted     bool       `json:"deleted"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
