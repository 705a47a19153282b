package db

import (
	"context"
	"errors"
	"time"

	"github.com/terrascenik/server/cmd/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByName(ctx context.Context, name string) (*models.User, error)
	FindByEmails(ctx context.Context, emails []string) ([]models.User, error)
	// Search matches name or email, case-insensitively.
	Search(ctx context.Context, query string) ([]models.User, error)
	UpdateProfile(ctx context.Context, id string, profile ProfileUpdate) error
	UpdatePicture(ctx context.Context, id, picture string) error
	All(ctx context.Context) ([]models.User, error)
}

type ProfileUpdate struct {
	Name  string
	Email string
	Bio   string
}

// PostRepository returns lists newest first.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	FindByID(ctx context.Context, id string) (*models.Post, error)
	FindByUserIDs(ctx context.Context, userIDs []string) ([]models.Post, error)
	// Search matches caption or location, case-insensitively.
	Search(ctx context.Context, query string) ([]models.Post, error)
	Update(ctx context.Context, id string, update PostUpdate) error
	Delete(ctx context.Context, id string) error
	UpdateAuthor(ctx context.Context, userID, name, email string) (int64, error)
	CountByImageURL(ctx context.Context, imageURL string) (int64, error)
	All(ctx context.Context) ([]models.Post, error)
}

type PostUpdate struct {
	Caption  string
	Location string
	// ImageURL is left untouched when nil.
	ImageURL  *string
	UpdatedAt time.Time
}

type FollowRepository interface {
	Create(ctx context.Context, follow *models.Follow) error
	Find(ctx context.Context, followerID, followingID string) (*models.Follow, error)
	FindByFollower(ctx context.Context, followerID string) ([]models.Follow, error)
	Delete(ctx context.Context, followerID, followingID string) error
	UpdateFollowerName(ctx context.Context, followerID, name string) (int64, error)
	UpdateFollowing(ctx context.Context, followingID, name, email string) (int64, error)
	All(ctx context.Context) ([]models.Follow, error)
}

type LikeRepository interface {
	Create(ctx context.Context, like *models.Like) error
	Exists(ctx context.Context, userID, postID string) (bool, error)
	Delete(ctx context.Context, userID, postID string) error
	Count(ctx context.Context, postID string) (int64, error)
	// CountByPosts omits posts without likes.
	CountByPosts(ctx context.Context, postIDs []string) (map[string]int64, error)
	LikedPosts(ctx context.Context, userID string, postIDs []string) (map[string]bool, error)
	DeleteByPost(ctx context.Context, postID string) (int64, error)
	All(ctx context.Context) ([]models.Like, error)
}

type backend interface {
	Driver() string
	Migrate(ctx context.Context) error
	Drop(ctx context.Context, collections ...string) error
	Close(ctx context.Context) error
}

// Store groups the repositories of one database.
type Store struct {
	Users   UserRepository
	Posts   PostRepository
	Follows FollowRepository
	Likes   LikeRepository

	backend
}

// Dump returns every document of every collection keyed by collection name.
func (s *Store) Dump(ctx context.Context) (map[string]interface{}, error) {
	users, err := s.Users.All(ctx)
	if err != nil {
		return nil, err
	}
	posts, err := s.Posts.All(ctx)
	if err != nil {
		return nil, err
	}
	follows, err := s.Follows.All(ctx)
	if err != nil {
		return nil, err
	}
	likes, err := s.Likes.All(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		models.UsersCollection:   users,
		models.PostsCollection:   posts,
		models.FollowsCollection: follows,
		models.LikesCollection:   likes,
	}, nil
}

func isKnownCollection(name string) bool {
	for _, c := range models.Collections {
		if c == name {
			return true
		}
	}
	return false
}

func unique(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
