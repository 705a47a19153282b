package follow

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/terrascenik/server/cmd/models"
	"github.com/terrascenik/server/cmd/utils"
	"github.com/terrascenik/server/db"
)

type Service struct {
	store  *db.Store
	logger *zap.Logger
}

func NewService(store *db.Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

func (s *Service) target(ctx context.Context, email string) (*models.User, error) {
	user, err := s.store.Users.FindByEmail(ctx, email)
	if errors.Is(err, db.ErrNotFound) {
		return nil, utils.NotFound("User not found")
	}
	if err != nil {
		return nil, utils.Internal(err)
	}
	return user, nil
}

// Follow makes follower follow the user registered under targetEmail.
func (s *Service) Follow(ctx context.Context, follower models.Identity, targetEmail string) (*models.Follow, error) {
	if targetEmail == "" {
		return nil, utils.Validation("User email to follow is required")
	}

	target, err := s.target(ctx, targetEmail)
	if err != nil {
		return nil, err
	}
	if target.ID == follower.ID {
		return nil, utils.InvalidOperation("You cannot follow yourself")
	}

	_, err = s.store.Follows.Find(ctx, follower.ID, target.ID)
	if err == nil {
		return nil, utils.Conflict("You are already following this user")
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, utils.Internal(err)
	}

	follow := &models.Follow{
		FollowerID:     follower.ID,
		FollowerName:   follower.Name,
		FollowingID:    target.ID,
		FollowingName:  target.Name,
		FollowingEmail: target.Email,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.Follows.Create(ctx, follow); err != nil {
		// A concurrent identical request won the insert.
		if errors.Is(err, db.ErrDuplicate) {
			return nil, utils.Conflict("You are already following this user")
		}
		return nil, utils.Internal(err)
	}
	return follow, nil
}

// Unfollow removes the edge and returns the user that was unfollowed.
func (s *Service) Unfollow(ctx context.Context, follower models.Identity, targetEmail string) (*models.User, error) {
	if targetEmail == "" {
		return nil, utils.Validation("User email to unfollow is required")
	}

	target, err := s.target(ctx, targetEmail)
	if err != nil {
		return nil, err
	}

	err = s.store.Follows.Delete(ctx, follower.ID, target.ID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, utils.InvalidOperation("You are not following this user")
	}
	if err != nil {
		return nil, utils.Internal(err)
	}
	return target, nil
}

// Following lists the accounts userID follows with their current pictures.
func (s *Service) Following(ctx context.Context, userID string) ([]models.FollowingView, error) {
	follows, err := s.store.Follows.FindByFollower(ctx, userID)
	if err != nil {
		return nil, utils.Internal(err)
	}

	emails := make([]string, 0, len(follows))
	for _, f := range follows {
		emails = append(emails, f.FollowingEmail)
	}
	users, err := s.store.Users.FindByEmails(ctx, emails)
	if err != nil {
		return nil, utils.Internal(err)
	}
	pictures := make(map[string]string, len(users))
	for _, u := range users {
		pictures[u.Email] = u.ProfilePicture
	}

	list := make([]models.FollowingView, 0, len(follows))
	for _, f := range follows {
		list = append(list, models.FollowingView{
			ID:             f.FollowingID,
			Name:           f.FollowingName,
			Email:          f.FollowingEmail,
			ProfilePicture: models.OptionalString(pictures[f.FollowingEmail]),
			FollowedAt:     f.CreatedAt,
		})
	}
	return list, nil
}
