package sitedata

import (
	"context"

	"github.com/luminagoods/site/src/db"
	"github.com/luminagoods/site/src/models"
	"github.com/luminagoods/site/src/oops"
)

func (s *Store) InsertComment(ctx context.Context, postSlug, name, email, body string) (*models.Comment, error) {
	comment, err := db.QueryOne[models.Comment](ctx, s.conn,
		`
		---- Insert comment
		INSERT INTO comments (post_slug, name, email, body)
		VALUES ($1, $2, $3, $4)
		RETURNING $columns
		`,
		postSlug, name, email, body,
	)
	if err != nil {
		return nil, oops.New(err, "failed to save comment")
	}
	return comment, nil
}

func (s *Store) ListComments(ctx context.Context, postSlug string) ([]*models.Comment, error) {
	comments, err := db.Query[models.Comment](ctx, s.conn,
		`
		---- List comments
		SELECT $columns
		FROM comments
		WHERE post_slug = $1
		ORDER BY created_at, id
		`,
		postSlug,
	)
	if err != nil {
		return nil, oops.New(err, "failed to fetch comments")
	}
	return comments, nil
}

// AddReaction records one reaction per visitor. added is false if the visitor had
// already left this reaction on the post.
func (s *Store) AddReaction(ctx context.Context, postSlug, reaction, visitorHash string) (added bool, err error) {
	tag, err := s.conn.Exec(ctx,
		`
		---- Add reaction
		INSERT INTO reactions (post_slug, reaction, visitor_hash)
		VALUES ($1, $2, $3)
		ON CONFLICT (post_slug, reaction, visitor_hash) DO NOTHING
		`,
		postSlug, reaction, visitorHash,
	)
	if err != nil {
		return false, oops.New(err, "failed to save reaction")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) CountReactions(ctx context.Context, postSlug string) ([]*models.ReactionCount, error) {
	counts, err := db.Query[models.ReactionCount](ctx, s.conn,
		`
		---- Count reactions
		SELECT reaction, count(*) AS count
		FROM reactions
		WHERE post_slug = $1
		GROUP BY reaction
		ORDER BY reaction
		`,
		postSlug,
	)
	if err != nil {
		return nil, oops.New(err, "failed to count reactions")
	}
	return counts, nil
}

func (s *Store) InsertAnalyticsEvent(ctx context.Context, eventName, path string, metadata map[string]any) error {
	if metadata == nil {
		metadata = map[string]any{}
	}
	_, err := s.conn.Exec(ctx,
		`
		---- Insert analytics event
		INSERT INTO analytics_events (event_name, path, metadata)
		VALUES ($1, $2, $3)
		`,
		eventName, path, metadata,
	)
	if err != nil {
		return oops.New(err, "failed to save analytics event")
	}
	return nil
}
