package feed

import (
	"context"

	"go.uber.org/zap"

	"github.com/terrascenik/server/cmd/models"
	"github.com/terrascenik/server/db"
	"github.com/terrascenik/server/service/aggregate"
)

const EmptyFeedMessage = "You are not following anyone yet. Follow users to see their posts!"

type Feed struct {
	Posts []models.PostView
	// Message is set when the user follows nobody.
	Message string
}

// Builder assembles a user's feed from the accounts they follow. It never
// falls back to posts from accounts the user does not follow.
type Builder struct {
	store      *db.Store
	aggregator *aggregate.Aggregator
	logger     *zap.Logger
}

func NewBuilder(store *db.Store, aggregator *aggregate.Aggregator, logger *zap.Logger) *Builder {
	return &Builder{store: store, aggregator: aggregator, logger: logger}
}

func (b *Builder) Build(ctx context.Context, userID string) (*Feed, error) {
	follows, err := b.store.Follows.FindByFollower(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(follows) == 0 {
		return &Feed{Posts: []models.PostView{}, Message: EmptyFeedMessage}, nil
	}

	followingIDs := make([]string, 0, len(follows))
	for _, f := range follows {
		followingIDs = append(followingIDs, f.FollowingID)
	}

	posts, err := b.store.Posts.FindByUserIDs(ctx, followingIDs)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("feed assembled",
		zap.String("userId", userID),
		zap.Int("following", len(followingIDs)),
		zap.Int("posts", len(posts)),
	)

	views, err := b.aggregator.Posts(ctx, posts, userID)
	if err != nil {
		return nil, err
	}
	return &Feed{Posts: views}, nil
}
