// Package events publishes post lifecycle notifications to the message
// broker so that other services can react to new, edited or removed posts.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/quillpost/apiserver/internal/mq"
	"github.com/quillpost/apiserver/types"
)

// Kind names a post lifecycle transition.
type Kind string

const (
	PostCreated Kind = "post.created"
	PostUpdated Kind = "post.updated"
	PostDeleted Kind = "post.deleted"
)

// PostEvent is the JSON payload published for every post mutation.
type PostEvent struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	PostID      int64     `json:"post_id"`
	ActorUserID string    `json:"actor_user_id"`
	Title       string    `json:"title,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher serializes post events onto a single broker channel.
type Publisher struct {
	mq      *mq.MQ
	channel string
	now     func() time.Time
}

// NewPublisher constructs a Publisher writing to channel.
func NewPublisher(m *mq.MQ, channel string) *Publisher {
	return &Publisher{mq: m, channel: channel, now: time.Now}
}

// PublishPost emits an event of the given kind for post, attributed to actor.
func (p *Publisher) PublishPost(ctx context.Context, kind Kind, post types.Post, actor string) error {
	if p == nil || p.mq == nil {
		return nil
	}

	event := PostEvent{
		ID:          uuid.NewString(),
		Kind:        kind,
		PostID:      post.ID,
		ActorUserID: actor,
		OccurredAt:  p.now().UTC(),
	}
	if kind != PostDeleted {
		event.Title = post.Title
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode post event: %w", err)
	}

	postID := strconv.FormatInt(post.ID, 10)
	attrs := map[string]string{
		"kind":             string(kind),
		"post_id":          postID,
		mq.AttrContentType: "application/json",
		mq.AttrOrderingKey: "post-" + postID,
	}
	if _, err := p.mq.Publish(ctx, p.channel, data, attrs); err != nil {
		return fmt.Errorf("publish %s: %w", kind, err)
	}
	return nil
}

// Decode parses a post event payload.
func Decode(data []byte) (PostEvent, error) {
	var event PostEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return PostEvent{}, fmt.Errorf("decode post event: %w", err)
	}
	if event.Kind == "" || event.PostID == 0 {
		return PostEvent{}, errors.New("decode post event: missing kind or post id")
	}
	return event, nil
}
