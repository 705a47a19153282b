// Package aggregate enriches posts with author pictures and like state using a
// fixed number of store round trips per batch.
package aggregate

import (
	"context"

	"github.com/terrascenik/server/cmd/models"
	"github.com/terrascenik/server/db"
)

type Aggregator struct {
	store *db.Store
}

func New(store *db.Store) *Aggregator {
	return &Aggregator{store: store}
}

// Posts returns one view per post, in input order. viewerID may be empty, in
// which case no post is marked as liked.
func (a *Aggregator) Posts(ctx context.Context, posts []models.Post, viewerID string) ([]models.PostView, error) {
	views := make([]models.PostView, 0, len(posts))
	if len(posts) == 0 {
		return views, nil
	}

	emails := make([]string, 0, len(posts))
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		emails = append(emails, p.UserEmail)
		ids = append(ids, p.ID)
	}

	authors, err := a.store.Users.FindByEmails(ctx, emails)
	if err != nil {
		return nil, err
	}
	pictures := make(map[string]string, len(authors))
	for _, u := range authors {
		pictures[u.Email] = u.ProfilePicture
	}

	counts, err := a.store.Likes.CountByPosts(ctx, ids)
	if err != nil {
		return nil, err
	}

	liked, err := a.store.Likes.LikedPosts(ctx, viewerID, ids)
	if err != nil {
		return nil, err
	}

	for _, p := range posts {
		view := models.NewPostView(p)
		view.ProfilePicture = models.OptionalString(pictures[p.UserEmail])
		view.LikeCount = counts[p.ID]
		view.IsLiked = liked[p.ID]
		views = append(views, view)
	}
	return views, nil
}

// Post is Posts for a single post.
func (a *Aggregator) Post(ctx context.Context, post models.Post, viewerID string) (*models.PostView, error) {
	views, err := a.Posts(ctx, []models.Post{post}, viewerID)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}
