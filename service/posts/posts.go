package posts

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/terrascenik/server/cmd/models"
	"github.com/terrascenik/server/cmd/utils"
	"github.com/terrascenik/server/db"
	"github.com/terrascenik/server/service/aggregate"
)

type Service struct {
	store      *db.Store
	aggregator *aggregate.Aggregator
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(store *db.Store, aggregator *aggregate.Aggregator, logger *zap.Logger) *Service {
	return &Service{
		store:      store,
		aggregator: aggregator,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type PostInput struct {
	Caption  string  `json:"caption"`
	Location string  `json:"location"`
	ImageURL *string `json:"image_url"`
}

func (in PostInput) validate() error {
	if in.Caption == "" || in.Location == "" {
		return utils.Validation("Caption and location are required")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, author models.Identity, in PostInput) (*models.Post, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	post := &models.Post{
		UserID:    author.ID,
		UserName:  author.Name,
		UserEmail: author.Email,
		Caption:   in.Caption,
		Location:  in.Location,
		CreatedAt: s.now(),
	}
	if in.ImageURL != nil {
		post.ImageURL = *in.ImageURL
	}

	if err := s.store.Posts.Create(ctx, post); err != nil {
		return nil, utils.Internal(err)
	}
	return post, nil
}

func (s *Service) find(ctx context.Context, postID string) (*models.Post, error) {
	post, err := s.store.Posts.FindByID(ctx, postID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, utils.NotFound("Post not found")
	}
	if err != nil {
		return nil, utils.Internal(err)
	}
	return post, nil
}

func (s *Service) Get(ctx context.Context, viewerID, postID string) (*models.PostView, error) {
	post, err := s.find(ctx, postID)
	if err != nil {
		return nil, err
	}
	view, err := s.aggregator.Post(ctx, *post, viewerID)
	if err != nil {
		return nil, utils.Internal(err)
	}
	return view, nil
}

// Update edits an owned post. The image is replaced only when in.ImageURL is set.
func (s *Service) Update(ctx context.Context, actorID, postID string, in PostInput) error {
	if err := in.validate(); err != nil {
		return err
	}

	post, err := s.find(ctx, postID)
	if err != nil {
		return err
	}
	if post.UserID != actorID {
		return utils.Forbidden("You can only edit your own posts")
	}

	err = s.store.Posts.Update(ctx, postID, db.PostUpdate{
		Caption:   in.Caption,
		Location:  in.Location,
		ImageURL:  in.ImageURL,
		UpdatedAt: s.now(),
	})
	if errors.Is(err, db.ErrNotFound) {
		return utils.NotFound("Post not found")
	}
	if err != nil {
		return utils.Internal(err)
	}
	return nil
}

// Delete removes an owned post and then, best effort, its likes. It returns
// the deleted post.
func (s *Service) Delete(ctx context.Context, actorID, postID string) (*models.Post, error) {
	post, err := s.find(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.UserID != actorID {
		return nil, utils.Forbidden("You can only delete your own posts")
	}

	err = s.store.Posts.Delete(ctx, postID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, utils.NotFound("Post not found")
	}
	if err != nil {
		return nil, utils.Internal(err)
	}

	if n, err := s.store.Likes.DeleteByPost(ctx, postID); err != nil {
		s.logger.Warn("orphaned likes left behind", zap.String("postId", postID), zap.Error(err))
	} else if n > 0 {
		s.logger.Debug("removed likes of deleted post", zap.String("postId", postID), zap.Int64("likes", n))
	}
	return post, nil
}

// ImageInUse reports whether any post still points at imageURL.
func (s *Service) ImageInUse(ctx context.Context, imageURL string) (bool, error) {
	n, err := s.store.Posts.CountByImageURL(ctx, imageURL)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Service) Search(ctx context.Context, viewerID, query string) ([]models.PostView, error) {
	if query == "" {
		return nil, utils.Validation(`Search query parameter "q" is required`)
	}
	posts, err := s.store.Posts.Search(ctx, query)
	if err != nil {
		return nil, utils.Internal(err)
	}
	return s.views(ctx, posts, viewerID)
}

// Mine returns the viewer's own posts, newest first.
func (s *Service) Mine(ctx context.Context, viewerID string) ([]models.PostView, error) {
	posts, err := s.store.Posts.FindByUserIDs(ctx, []string{viewerID})
	if err != nil {
		return nil, utils.Internal(err)
	}
	return s.views(ctx, posts, viewerID)
}

func (s *Service) views(ctx context.Context, posts []models.Post, viewerID string) ([]models.PostView, error) {
	views, err := s.aggregator.Posts(ctx, posts, viewerID)
	if err != nil {
		return nil, utils.Internal(err)
	}
	return views, nil
}

// Like records a like by userID and returns the post's new like count.
func (s *Service) Like(ctx context.Context, userID, postID string) (int64, error) {
	if _, err := s.find(ctx, postID); err != nil {
		return 0, err
	}

	liked, err := s.store.Likes.Exists(ctx, userID, postID)
	if err != nil {
		return 0, utils.Internal(err)
	}
	if liked {
		return 0, utils.Conflict("You already liked this post")
	}

	err = s.store.Likes.Create(ctx, &models.Like{UserID: userID, PostID: postID, CreatedAt: s.now()})
	if errors.Is(err, db.ErrDuplicate) {
		return 0, utils.Conflict("You already liked this post")
	}
	if err != nil {
		return 0, utils.Internal(err)
	}
	return s.count(ctx, postID)
}

// Unlike removes a like by userID and returns the post's new like count.
func (s *Service) Unlike(ctx context.Context, userID, postID string) (int64, error) {
	err := s.store.Likes.Delete(ctx, userID, postID)
	if errors.Is(err, db.ErrNotFound) {
		return 0, utils.InvalidOperation("You have not liked this post")
	}
	if err != nil {
		return 0, utils.Internal(err)
	}
	return s.count(ctx, postID)
}

func (s *Service) count(ctx context.Context, postID string) (int64, error) {
	n, err := s.store.Likes.Count(ctx, postID)
	if err != nil {
		return 0, utils.Internal(err)
	}
	return n, nil
}
