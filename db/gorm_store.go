package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/terrascenik/server/cmd/models"
)

// NewGormStore returns a Store backed by a SQL database.
func NewGormStore(db *gorm.DB) *Store {
	return &Store{
		Users:   &gormUsers{db: db},
		Posts:   &gormPosts{db: db},
		Follows: &gormFollows{db: db},
		Likes:   &gormLikes{db: db},
		backend: &gormBackend{db: db},
	}
}

func translateGormError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey),
		strings.Contains(err.Error(), "UNIQUE constraint"),
		strings.Contains(err.Error(), "duplicate key"):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func likePattern(query string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(query)) + "%"
}

type gormBackend struct {
	db *gorm.DB
}

func (b *gormBackend) Driver() string {
	return b.db.Dialector.Name()
}

func (b *gormBackend) Migrate(ctx context.Context) error {
	return b.db.WithContext(ctx).AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.Follow{},
		&models.Like{},
	)
}

func (b *gormBackend) Drop(ctx context.Context, collections ...string) error {
	tables := map[string]interface{}{
		models.UsersCollection:   &models.User{},
		models.PostsCollection:   &models.Post{},
		models.FollowsCollection: &models.Follow{},
		models.LikesCollection:   &models.Like{},
	}
	migrator := b.db.WithContext(ctx).Migrator()
	for _, name := range collections {
		table, ok := tables[name]
		if !ok {
			return fmt.Errorf("unknown collection %q", name)
		}
		if err := migrator.DropTable(table); err != nil {
			return fmt.Errorf("drop %s: %w", name, err)
		}
	}
	return nil
}

func (b *gormBackend) Close(context.Context) error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type gormUsers struct {
	db *gorm.DB
}

func (r *gormUsers) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	return translateGormError(r.db.WithContext(ctx).Create(user).Error)
}

func (r *gormUsers) findOne(ctx context.Context, column, value string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where(column+" = ?", value).First(&user).Error
	if err != nil {
		return nil, translateGormError(err)
	}
	return &user, nil
}

func (r *gormUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, "id", id)
}

func (r *gormUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "email", email)
}

func (r *gormUsers) FindByName(ctx context.Context, name string) (*models.User, error) {
	return r.findOne(ctx, "name", name)
}

func (r *gormUsers) FindByEmails(ctx context.Context, emails []string) ([]models.User, error) {
	var users []models.User
	if len(emails) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).Where("email IN ?", unique(emails)).Find(&users).Error
	return users, translateGormError(err)
}

func (r *gormUsers) Search(ctx context.Context, query string) ([]models.User, error) {
	var users []models.User
	pattern := likePattern(query)
	err := r.db.WithContext(ctx).
		Where(`LOWER(name) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\'`, pattern, pattern).
		Order("name").
		Find(&users).Error
	return users, translateGormError(err)
}

func (r *gormUsers) UpdateProfile(ctx context.Context, id string, profile ProfileUpdate) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"name":  profile.Name,
		"email": profile.Email,
		"bio":   profile.Bio,
	})
	if res.Error != nil {
		return translateGormError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormUsers) UpdatePicture(ctx context.Context, id, picture string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("profile_picture", picture)
	if res.Error != nil {
		return translateGormError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormUsers) All(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).Order("created_at").Find(&users).Error
	return users, translateGormError(err)
}

type gormPosts struct {
	db *gorm.DB
}

func (r *gormPosts) Create(ctx context.Context, post *models.Post) error {
	if post.ID == "" {
		post.ID = uuid.New().String()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	return translateGormError(r.db.WithContext(ctx).Create(post).Error)
}

func (r *gormPosts) FindByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error; err != nil {
		return nil, translateGormError(err)
	}
	return &post, nil
}

func (r *gormPosts) FindByUserIDs(ctx context.Context, userIDs []string) ([]models.Post, error) {
	var posts []models.Post
	if len(userIDs) == 0 {
		return posts, nil
	}
	err := r.db.WithContext(ctx).
		Where("user_id IN ?", unique(userIDs)).
		Order("created_at DESC").
		Find(&posts).Error
	return posts, translateGormError(err)
}

func (r *gormPosts) Search(ctx context.Context, query string) ([]models.Post, error) {
	var posts []models.Post
	tx := r.db.WithContext(ctx)
	if query != "" {
		pattern := likePattern(query)
		tx = tx.Where(`LOWER(caption) LIKE ? ESCAPE '\' OR LOWER(location) LIKE ? ESCAPE '\'`, pattern, pattern)
	}
	err := tx.Order("created_at DESC").Find(&posts).Error
	return posts, translateGormError(err)
}

func (r *gormPosts) Update(ctx context.Context, id string, update PostUpdate) error {
	values := map[string]interface{}{
		"caption":    update.Caption,
		"location":   update.Location,
		"updated_at": update.UpdatedAt,
	}
	if update.ImageURL != nil {
		values["image_url"] = *update.ImageURL
	}
	res := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return translateGormError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormPosts) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Post{})
	if res.Error != nil {
		return translateGormError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormPosts) UpdateAuthor(ctx context.Context, userID, name, email string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Post{}).Where("user_id = ?", userID).Updates(map[string]interface{}{
		"user_name":  name,
		"user_email": email,
	})
	return res.RowsAffected, translateGormError(res.Error)
}

func (r *gormPosts) CountByImageURL(ctx context.Context, imageURL string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).Where("image_url = ?", imageURL).Count(&count).Error
	return count, translateGormError(err)
}

func (r *gormPosts) All(ctx context.Context) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).Order("created_at").Find(&posts).Error
	return posts, translateGormError(err)
}

type gormFollows struct {
	db *gorm.DB
}

func (r *gormFollows) Create(ctx context.Context, follow *models.Follow) error {
	if follow.CreatedAt.IsZero() {
		follow.CreatedAt = time.Now().UTC()
	}
	return translateGormError(r.db.WithContext(ctx).Create(follow).Error)
}

func (r *gormFollows) Find(ctx context.Context, followerID, followingID string) (*models.Follow, error) {
	var follow models.Follow
	err := r.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		First(&follow).Error
	if err != nil {
		return nil, translateGormError(err)
	}
	return &follow, nil
}

func (r *gormFollows) FindByFollower(ctx context.Context, followerID string) ([]models.Follow, error) {
	var follows []models.Follow
	err := r.db.WithContext(ctx).
		Where("follower_id = ?", followerID).
		Order("created_at DESC").
		Find(&follows).Error
	return follows, translateGormError(err)
}

func (r *gormFollows) Delete(ctx context.Context, followerID, followingID string) error {
	res := r.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&models.Follow{})
	if res.Error != nil {
		return translateGormError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormFollows) UpdateFollowerName(ctx context.Context, followerID, name string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ?", followerID).
		Update("follower_name", name)
	return res.RowsAffected, translateGormError(res.Error)
}

func (r *gormFollows) UpdateFollowing(ctx context.Context, followingID, name, email string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("following_id = ?", followingID).
		Updates(map[string]interface{}{
			"following_name":  name,
			"following_email": email,
		})
	return res.RowsAffected, translateGormError(res.Error)
}

func (r *gormFollows) All(ctx context.Context) ([]models.Follow, error) {
	var follows []models.Follow
	err := r.db.WithContext(ctx).Order("created_at").Find(&follows).Error
	return follows, translateGormError(err)
}

type gormLikes struct {
	db *gorm.DB
}

func (r *gormLikes) Create(ctx context.Context, like *models.Like) error {
	if like.CreatedAt.IsZero() {
		like.CreatedAt = time.Now().UTC()
	}
	return translateGormError(r.db.WithContext(ctx).Create(like).Error)
}

func (r *gormLikes) Exists(ctx context.Context, userID, postID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Count(&count).Error
	return count > 0, translateGormError(err)
}

func (r *gormLikes) Delete(ctx context.Context, userID, postID string) error {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Delete(&models.Like{})
	if res.Error != nil {
		return translateGormError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormLikes) Count(ctx context.Context, postID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Like{}).Where("post_id = ?", postID).Count(&count).Error
	return count, translateGormError(err)
}

func (r *gormLikes) CountByPosts(ctx context.Context, postIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(postIDs))
	if len(postIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		PostID string
		Total  int64
	}
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Select("post_id, COUNT(*) AS total").
		Where("post_id IN ?", unique(postIDs)).
		Group("post_id").
		Scan(&rows).Error
	if err != nil {
		return nil, translateGormError(err)
	}
	for _, row := range rows {
		counts[row.PostID] = row.Total
	}
	return counts, nil
}

func (r *gormLikes) LikedPosts(ctx context.Context, userID string, postIDs []string) (map[string]bool, error) {
	liked := make(map[string]bool)
	if userID == "" || len(postIDs) == 0 {
		return liked, nil
	}
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Where("user_id = ? AND post_id IN ?", userID, unique(postIDs)).
		Pluck("post_id", &ids).Error
	if err != nil {
		return nil, translateGormError(err)
	}
	for _, id := range ids {
		liked[id] = true
	}
	return liked, nil
}

func (r *gormLikes) DeleteByPost(ctx context.Context, postID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("post_id = ?", postID).Delete(&models.Like{})
	return res.RowsAffected, translateGormError(res.Error)
}

func (r *gormLikes) All(ctx context.Context) ([]models.Like, error) {
	var likes []models.Like
	err := r.db.WithContext(ctx).Order("created_at").Find(&likes).Error
	return likes, translateGormError(err)
}
