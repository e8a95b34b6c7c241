package comment

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Add attaches a comment to an order or result and returns its id.
func (s *Service) Add(ctx context.Context, subjectType string, subjectID uuid.UUID, message string, authorID uuid.UUID) (uuid.UUID, error) {
	if subjectType != SubjectOrder && subjectType != SubjectResult {
		return uuid.Nil, fmt.Errorf("invalid subject type: %s", subjectType)
	}
	if strings.TrimSpace(message) == "" {
		return uuid.Nil, fmt.Errorf("comment message is required")
	}
	if subjectID == uuid.Nil || authorID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("subject and author are required")
	}

	c := &Comment{
		SubjectType: subjectType,
		SubjectID:   subjectID,
		Message:     message,
		AuthorID:    authorID,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return uuid.Nil, err
	}
	return c.ID, nil
}

// Delete soft-deletes a comment. Only its author may delete it.
func (s *Service) Delete(ctx context.Context, id, requesterID uuid.UUID) error {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("comment %s not found", id)
	}
	if c.AuthorID != requesterID {
		return fmt.Errorf("comment %s can only be deleted by its author", id)
	}
	if c.Deleted {
		return fmt.Errorf("comment %s already deleted", id)
	}
	return s.repo.SoftDelete(ctx, id)
}

func (s *Service) ListBySubject(ctx context.Context, subjectType string, subjectID uuid.UUID) ([]*Comment, error) {
	return s.repo.ListBySubject(ctx, subjectType, subjectID)
}
