package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/terrascenik/server/cmd/models"
	"github.com/terrascenik/server/cmd/utils"
	"github.com/terrascenik/server/db"
	"github.com/terrascenik/server/monitoring"
	"github.com/terrascenik/server/service/aggregate"
)

var validate = validator.New()

type Service struct {
	store      *db.Store
	aggregator *aggregate.Aggregator
	passwords  passwords
	logger     *zap.Logger
}

func NewService(store *db.Store, aggregator *aggregate.Aggregator, hashPasswords bool, logger *zap.Logger) *Service {
	return &Service{
		store:      store,
		aggregator: aggregator,
		passwords:  passwords{hash: hashPasswords},
		logger:     logger,
	}
}

type RegisterInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Bio      string `json:"bio"`
}

type ProfileInput struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required"`
	Bio   string `json:"bio"`
}

// Profile is a user's public page as seen by a viewer.
type Profile struct {
	User        models.PublicUser `json:"user"`
	Posts       []models.PostView `json:"posts"`
	PostsCount  int               `json:"postsCount"`
	IsFollowing bool              `json:"isFollowing"`
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if err := validate.Struct(in); err != nil {
		return nil, utils.Validation("Name, email, and password are required")
	}

	_, err := s.store.Users.FindByEmail(ctx, in.Email)
	if err == nil {
		return nil, utils.Conflict("Email already registered")
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, utils.Internal(err)
	}

	password, err := s.passwords.seal(in.Password)
	if err != nil {
		return nil, utils.Internal(err)
	}

	user := &models.User{
		Name:      in.Name,
		Email:     in.Email,
		Password:  password,
		Bio:       in.Bio,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Users.Create(ctx, user); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, utils.Conflict("Email already registered")
		}
		return nil, utils.Internal(err)
	}
	return user, nil
}

// Login checks name and password against the stored user.
func (s *Service) Login(ctx context.Context, name, password string) (*models.User, error) {
	if name == "" || password == "" {
		return nil, utils.Validation("Username and password are required")
	}

	user, err := s.store.Users.FindByName(ctx, name)
	if errors.Is(err, db.ErrNotFound) {
		return nil, utils.Unauthorized("Invalid username or password")
	}
	if err != nil {
		return nil, utils.Internal(err)
	}
	if !s.passwords.matches(user.Password, password) {
		return nil, utils.Unauthorized("Invalid username or password")
	}
	return user, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.store.Users.FindByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, utils.NotFound("User not found")
	}
	if err != nil {
		return nil, utils.Internal(err)
	}
	return user, nil
}

func (s *Service) Search(ctx context.Context, query string) ([]models.PublicUser, error) {
	if query == "" {
		return nil, utils.Validation(`Search query parameter "q" is required`)
	}
	users, err := s.store.Users.Search(ctx, query)
	if err != nil {
		return nil, utils.Internal(err)
	}
	results := make([]models.PublicUser, 0, len(users))
	for _, u := range users {
		results = append(results, u.Public())
	}
	return results, nil
}

// UpdateProfile changes name, email and bio, then refreshes every denormalized
// copy of the name and email. The refresh is best effort: a failure there is
// logged and the profile change still stands.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*models.User, error) {
	if err := validate.Struct(in); err != nil {
		return nil, utils.Validation("Name and email are required")
	}

	current, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.Email != current.Email {
		other, err := s.store.Users.FindByEmail(ctx, in.Email)
		switch {
		case err == nil && other.ID != userID:
			return nil, utils.Conflict("Email is already taken by another user")
		case err != nil && !errors.Is(err, db.ErrNotFound):
			return nil, utils.Internal(err)
		}
	}

	err = s.store.Users.UpdateProfile(ctx, userID, db.ProfileUpdate{Name: in.Name, Email: in.Email, Bio: in.Bio})
	switch {
	case errors.Is(err, db.ErrNotFound):
		return nil, utils.NotFound("User not found")
	case errors.Is(err, db.ErrDuplicate):
		return nil, utils.Conflict("Email is already taken by another user")
	case err != nil:
		return nil, utils.Internal(err)
	}

	if err := s.cascade(ctx, userID, in.Name, in.Email); err != nil {
		monitoring.CascadeFailures.Inc()
		s.logger.Error("profile cascade incomplete",
			zap.String("userId", userID),
			zap.Errors("errors", multierr.Errors(err)),
		)
	}

	current.Name = in.Name
	current.Email = in.Email
	current.Bio = in.Bio
	return current, nil
}

// cascade rewrites the name and email copies held by posts and follows. Every
// step runs even if an earlier one fails.
func (s *Service) cascade(ctx context.Context, userID, name, email string) error {
	var errs error

	posts, err := s.store.Posts.UpdateAuthor(ctx, userID, name, email)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("posts: %w", err))
	}
	asFollower, err := s.store.Follows.UpdateFollowerName(ctx, userID, name)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("follows as follower: %w", err))
	}
	asFollowed, err := s.store.Follows.UpdateFollowing(ctx, userID, name, email)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("follows as followed: %w", err))
	}

	s.logger.Debug("profile cascade",
		zap.String("userId", userID),
		zap.Int64("posts", posts),
		zap.Int64("followerRecords", asFollower),
		zap.Int64("followedRecords", asFollowed),
	)
	return errs
}

func (s *Service) UpdatePicture(ctx context.Context, userID, picture string) error {
	if picture == "" {
		return utils.Validation("Profile picture is required")
	}
	err := s.store.Users.UpdatePicture(ctx, userID, picture)
	if errors.Is(err, db.ErrNotFound) {
		return utils.NotFound("User not found")
	}
	if err != nil {
		return utils.Internal(err)
	}
	return nil
}

// PublicProfile returns the profile of the user registered under email.
func (s *Service) PublicProfile(ctx context.Context, viewerID, email string) (*Profile, error) {
	user, err := s.store.Users.FindByEmail(ctx, email)
	if errors.Is(err, db.ErrNotFound) {
		return nil, utils.NotFound("User not found")
	}
	if err != nil {
		return nil, utils.Internal(err)
	}

	posts, err := s.store.Posts.FindByUserIDs(ctx, []string{user.ID})
	if err != nil {
		return nil, utils.Internal(err)
	}
	views, err := s.aggregator.Posts(ctx, posts, viewerID)
	if err != nil {
		return nil, utils.Internal(err)
	}

	isFollowing := false
	if viewerID != "" {
		_, err := s.store.Follows.Find(ctx, viewerID, user.ID)
		switch {
		case err == nil:
			isFollowing = true
		case !errors.Is(err, db.ErrNotFound):
			return nil, utils.Internal(err)
		}
	}

	return &Profile{
		User:        user.Public(),
		Posts:       views,
		PostsCount:  len(views),
		IsFollowing: isFollowing,
	}, nil
}
