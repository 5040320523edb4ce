package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/quillpost/apiserver/types"
)

// The Memory* repositories keep everything in process memory. They satisfy
// the same contracts as the postgres repositories and back STORE_DRIVER=memory
// and the tests.

// MemoryUserRepository is an in-memory user store.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]types.User
	now   func() time.Time
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[string]types.User),
		now:   time.Now,
	}
}

func (r *MemoryUserRepository) GetByUserID(_ context.Context, userID string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[userID]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryUserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.UserID]; exists {
		return types.User{}, ErrDuplicate
	}
	user.CreatedAt = r.now()
	r.users[user.UserID] = user
	return user, nil
}

// MemoryPostRepository is an in-memory post store.
type MemoryPostRepository struct {
	mu     sync.RWMutex
	posts  map[int64]types.Post
	nextID int64
	now    func() time.Time
}

func NewMemoryPostRepository() *MemoryPostRepository {
	return &MemoryPostRepository{
		posts: make(map[int64]types.Post),
		now:   time.Now,
	}
}

// SetClock overrides the time source used to stamp created_at.
func (r *MemoryPostRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

func (r *MemoryPostRepository) List(_ context.Context) ([]types.Post, error) {
	r.mu.RLock()
	posts := make([]types.Post, 0, len(r.posts))
	for _, post := range r.posts {
		posts = append(posts, post)
	}
	r.mu.RUnlock()

	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return posts[i].ID > posts[j].ID
	})
	return posts, nil
}

func (r *MemoryPostRepository) Get(_ context.Context, id int64) (types.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	post, ok := r.posts[id]
	if !ok {
		return types.Post{}, ErrNotFound
	}
	return post, nil
}

func (r *MemoryPostRepository) Create(_ context.Context, post types.Post) (types.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	post.ID = r.nextID
	post.CreatedAt = r.now()
	r.posts[post.ID] = post
	return post, nil
}

func (r *MemoryPostRepository) UpdateContent(_ context.Context, id int64, title, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	post, ok := r.posts[id]
	if !ok {
		return ErrNotFound
	}
	post.Title = title
	post.Body = body
	r.posts[id] = post
	return nil
}

func (r *MemoryPostRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.posts[id]; !ok {
		return ErrNotFound
	}
	delete(r.posts, id)
	return nil
}

// MemorySessionRepository is an in-memory session table.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]types.Session
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: make(map[string]types.Session)}
}

func (r *MemorySessionRepository) Create(_ context.Context, session types.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.TokenHash]; exists {
		return ErrDuplicate
	}
	r.sessions[session.TokenHash] = session
	return nil
}

func (r *MemorySessionRepository) Get(_ context.Context, tokenHash string) (types.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[tokenHash]
	if !ok {
		return types.Session{}, ErrNotFound
	}
	return session, nil
}

func (r *MemorySessionRepository) Delete(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	delete(r.sessions, tokenHash)
	r.mu.Unlock()
	return nil
}

func (r *MemorySessionRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for key, session := range r.sessions {
		if session.Expired(now) {
			delete(r.sessions, key)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of stored sessions, expired or not.
func (r *MemorySessionRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
