package services

import (
	"context"
	"errors"
	"strings"

	"github.com/quillpost/apiserver/internal/events"
	"github.com/quillpost/apiserver/internal/logging"
	"github.com/quillpost/apiserver/internal/store"
	"github.com/quillpost/apiserver/types"
)

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	List(ctx context.Context) ([]types.Post, error)
	Get(ctx context.Context, id int64) (types.Post, error)
	Create(ctx context.Context, post types.Post) (types.Post, error)
	UpdateContent(ctx context.Context, id int64, title, body string) error
	Delete(ctx context.Context, id int64) error
}

// PostEvents receives a notification after each successful mutation.
type PostEvents interface {
	PublishPost(ctx context.Context, kind events.Kind, post types.Post, actor string) error
}

// PostService encapsulates post use-cases, including the ownership rules
// for edits and deletes.
type PostService struct {
	repo   PostRepository
	events PostEvents
	logger logging.Logger
}

// NewPostService constructs a PostService. publisher may be nil.
func NewPostService(repo PostRepository, publisher PostEvents, logger logging.Logger) *PostService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &PostService{repo: repo, events: publisher, logger: logger}
}

func (s *PostService) List(ctx context.Context) ([]types.Post, error) {
	return s.repo.List(ctx)
}

func (s *PostService) Get(ctx context.Context, id int64) (types.Post, error) {
	return s.repo.Get(ctx, id)
}

// Create stores a new post owned by p. The creator name is copied from the
// principal and never refreshed.
func (s *PostService) Create(ctx context.Context, p types.Principal, title, body string) (types.Post, error) {
	if err := validateContent(title, body); err != nil {
		return types.Post{}, err
	}

	post, err := s.repo.Create(ctx, types.Post{
		CreatorUserID: p.UserID,
		CreatorName:   p.Name,
		Title:         title,
		Body:          body,
	})
	if err != nil {
		return types.Post{}, err
	}

	s.publish(ctx, events.PostCreated, post, p.UserID)
	return post, nil
}

// Update replaces the title and body of post id. The post must exist and
// belong to p; existence is checked first.
func (s *PostService) Update(ctx context.Context, p types.Principal, id int64, title, body string) error {
	if err := validateContent(title, body); err != nil {
		return err
	}

	post, err := s.ownedPost(ctx, p, id)
	if err != nil {
		return err
	}

	if err := s.repo.UpdateContent(ctx, id, title, body); err != nil {
		return err
	}

	post.Title = title
	post.Body = body
	s.publish(ctx, events.PostUpdated, post, p.UserID)
	return nil
}

// Delete permanently removes post id. The same existence-then-ownership
// order as Update applies.
func (s *PostService) Delete(ctx context.Context, p types.Principal, id int64) error {
	post, err := s.ownedPost(ctx, p, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, events.PostDeleted, post, p.UserID)
	return nil
}

func (s *PostService) ownedPost(ctx context.Context, p types.Principal, id int64) (types.Post, error) {
	post, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Post{}, ErrNotFound
		}
		return types.Post{}, err
	}
	if err := RequireOwnership(p, post.CreatorUserID); err != nil {
		return types.Post{}, err
	}
	return post, nil
}

func (s *PostService) publish(ctx context.Context, kind events.Kind, post types.Post, actor string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishPost(ctx, kind, post, actor); err != nil {
		s.logger.Warn(ctx, "failed to publish post event", "kind", kind, "post_id", post.ID, "error", err)
	}
}

func validateContent(title, body string) error {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(body) == "" {
		return ErrInvalidInput
	}
	return nil
}
