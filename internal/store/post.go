package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/quillpost/apiserver/types"
)

// PostRepository handles persistence for posts.
type PostRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db}
}

// List returns every post, newest first. Posts created in the same instant
// are ordered by descending id.
func (r *PostRepository) List(ctx context.Context) ([]types.Post, error) {
	const query = `
		SELECT post_id, creator_user_id, creator_name, title, body, created_at
		FROM posts
		ORDER BY created_at DESC, post_id DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := make([]types.Post, 0)
	for rows.Next() {
		var post types.Post
		if err := rows.Scan(
			&post.ID,
			&post.CreatorUserID,
			&post.CreatorName,
			&post.Title,
			&post.Body,
			&post.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	return posts, nil
}

func (r *PostRepository) Get(ctx context.Context, id int64) (types.Post, error) {
	const query = `
		SELECT post_id, creator_user_id, creator_name, title, body, created_at
		FROM posts
		WHERE post_id = $1`
	var post types.Post
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&post.ID,
		&post.CreatorUserID,
		&post.CreatorName,
		&post.Title,
		&post.Body,
		&post.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Post{}, ErrNotFound
		}
		return types.Post{}, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}

// Create inserts a post. The id and created_at are assigned by the database.
func (r *PostRepository) Create(ctx context.Context, post types.Post) (types.Post, error) {
	const query = `
		INSERT INTO posts (creator_user_id, creator_name, title, body)
		VALUES ($1, $2, $3, $4)
		RETURNING post_id, created_at`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		post.CreatorUserID,
		post.CreatorName,
		post.Title,
		post.Body,
	).Scan(&post.ID, &post.CreatedAt); err != nil {
		return types.Post{}, fmt.Errorf("create post: %w", err)
	}
	return post, nil
}

// UpdateContent replaces the title and body of a post. No other column is
// written.
func (r *PostRepository) UpdateContent(ctx context.Context, id int64, title, body string) error {
	const query = `
		UPDATE posts
		SET title = $1,
			body = $2
		WHERE post_id = $3`
	result, err := r.db.ExecContext(ctx, query, title, body, id)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM posts WHERE post_id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
