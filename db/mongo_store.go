package db

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/terrascenik/server/cmd/models"
)

// NewMongoStore returns a Store backed by a MongoDB database. client may be
// nil when the caller owns the connection.
func NewMongoStore(client *mongo.Client, database *mongo.Database) *Store {
	return &Store{
		Users:   &mongoUsers{collection: database.Collection(models.UsersCollection)},
		Posts:   &mongoPosts{collection: database.Collection(models.PostsCollection)},
		Follows: &mongoFollows{collection: database.Collection(models.FollowsCollection)},
		Likes:   &mongoLikes{collection: database.Collection(models.LikesCollection)},
		backend: &mongoBackend{client: client, database: database},
	}
}

func translateMongoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

// idFilter matches documents whose _id is either the string id or, for
// documents created by older tooling, the equivalent ObjectID.
func idFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{id, oid}}}
	}
	return bson.M{"_id": id}
}

func regexFilter(query string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
}

var newestFirst = options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

func findAll[T any](ctx context.Context, collection *mongo.Collection, filter interface{}, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, translateMongoError(err)
	}
	defer cursor.Close(ctx)

	results := []T{}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, translateMongoError(err)
	}
	return results, nil
}

type mongoBackend struct {
	client   *mongo.Client
	database *mongo.Database
}

func (b *mongoBackend) Driver() string {
	return "mongo"
}

func (b *mongoBackend) Migrate(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		models.UsersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "name", Value: 1}}},
		},
		models.PostsCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		},
		models.FollowsCollection: {
			{Keys: bson.D{{Key: "followerId", Value: 1}, {Key: "followingId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "followingId", Value: 1}}},
		},
		models.LikesCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "postId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "postId", Value: 1}}},
		},
	}
	for _, name := range models.Collections {
		if _, err := b.database.Collection(name).Indexes().CreateMany(ctx, indexes[name]); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}

func (b *mongoBackend) Drop(ctx context.Context, collections ...string) error {
	for _, name := range collections {
		if !isKnownCollection(name) {
			return fmt.Errorf("unknown collection %q", name)
		}
		if err := b.database.Collection(name).Drop(ctx); err != nil {
			return fmt.Errorf("drop %s: %w", name, err)
		}
	}
	return nil
}

func (b *mongoBackend) Close(ctx context.Context) error {
	if b.client == nil {
		return nil
	}
	return b.client.Disconnect(ctx)
}

type mongoUsers struct {
	collection *mongo.Collection
}

func (r *mongoUsers) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = primitive.NewObjectID().Hex()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := r.collection.InsertOne(ctx, user)
	return translateMongoError(err)
}

func (r *mongoUsers) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := r.collection.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, translateMongoError(err)
	}
	return &user, nil
}

func (r *mongoUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, idFilter(id))
}

func (r *mongoUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *mongoUsers) FindByName(ctx context.Context, name string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"name": name})
}

func (r *mongoUsers) FindByEmails(ctx context.Context, emails []string) ([]models.User, error) {
	if len(emails) == 0 {
		return []models.User{}, nil
	}
	return findAll[models.User](ctx, r.collection, bson.M{"email": bson.M{"$in": unique(emails)}})
}

func (r *mongoUsers) Search(ctx context.Context, query string) ([]models.User, error) {
	pattern := regexFilter(query)
	filter := bson.M{"$or": bson.A{
		bson.M{"name": pattern},
		bson.M{"email": pattern},
	}}
	return findAll[models.User](ctx, r.collection, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
}

func (r *mongoUsers) UpdateProfile(ctx context.Context, id string, profile ProfileUpdate) error {
	res, err := r.collection.UpdateOne(ctx, idFilter(id), bson.M{"$set": bson.M{
		"name":  profile.Name,
		"email": profile.Email,
		"bio":   profile.Bio,
	}})
	if err != nil {
		return translateMongoError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoUsers) UpdatePicture(ctx context.Context, id, picture string) error {
	res, err := r.collection.UpdateOne(ctx, idFilter(id), bson.M{"$set": bson.M{"profilePicture": picture}})
	if err != nil {
		return translateMongoError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoUsers) All(ctx context.Context) ([]models.User, error) {
	return findAll[models.User](ctx, r.collection, bson.M{})
}

type mongoPosts struct {
	collection *mongo.Collection
}

func (r *mongoPosts) Create(ctx context.Context, post *models.Post) error {
	if post.ID == "" {
		post.ID = primitive.NewObjectID().Hex()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	_, err := r.collection.InsertOne(ctx, post)
	return translateMongoError(err)
}

func (r *mongoPosts) FindByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := r.collection.FindOne(ctx, idFilter(id)).Decode(&post); err != nil {
		return nil, translateMongoError(err)
	}
	return &post, nil
}

func (r *mongoPosts) FindByUserIDs(ctx context.Context, userIDs []string) ([]models.Post, error) {
	if len(userIDs) == 0 {
		return []models.Post{}, nil
	}
	return findAll[models.Post](ctx, r.collection, bson.M{"userId": bson.M{"$in": unique(userIDs)}}, newestFirst)
}

func (r *mongoPosts) Search(ctx context.Context, query string) ([]models.Post, error) {
	filter := bson.M{}
	if query != "" {
		pattern := regexFilter(query)
		filter = bson.M{"$or": bson.A{
			bson.M{"caption": pattern},
			bson.M{"location": pattern},
		}}
	}
	return findAll[models.Post](ctx, r.collection, filter, newestFirst)
}

func (r *mongoPosts) Update(ctx context.Context, id string, update PostUpdate) error {
	set := bson.M{
		"caption":   update.Caption,
		"location":  update.Location,
		"updatedAt": update.UpdatedAt,
	}
	if update.ImageURL != nil {
		set["image_url"] = *update.ImageURL
	}
	res, err := r.collection.UpdateOne(ctx, idFilter(id), bson.M{"$set": set})
	if err != nil {
		return translateMongoError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoPosts) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, idFilter(id))
	if err != nil {
		return translateMongoError(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoPosts) UpdateAuthor(ctx context.Context, userID, name, email string) (int64, error) {
	res, err := r.collection.UpdateMany(ctx, bson.M{"userId": userID}, bson.M{"$set": bson.M{
		"userName":  name,
		"userEmail": email,
	}})
	if err != nil {
		return 0, translateMongoError(err)
	}
	return res.ModifiedCount, nil
}

func (r *mongoPosts) CountByImageURL(ctx context.Context, imageURL string) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"image_url": imageURL})
	return n, translateMongoError(err)
}

func (r *mongoPosts) All(ctx context.Context) ([]models.Post, error) {
	return findAll[models.Post](ctx, r.collection, bson.M{})
}

type mongoFollows struct {
	collection *mongo.Collection
}

func (r *mongoFollows) Create(ctx context.Context, follow *models.Follow) error {
	if follow.CreatedAt.IsZero() {
		follow.CreatedAt = time.Now().UTC()
	}
	_, err := r.collection.InsertOne(ctx, follow)
	return translateMongoError(err)
}

func (r *mongoFollows) Find(ctx context.Context, followerID, followingID string) (*models.Follow, error) {
	var follow models.Follow
	err := r.collection.FindOne(ctx, bson.M{"followerId": followerID, "followingId": followingID}).Decode(&follow)
	if err != nil {
		return nil, translateMongoError(err)
	}
	return &follow, nil
}

func (r *mongoFollows) FindByFollower(ctx context.Context, followerID string) ([]models.Follow, error) {
	return findAll[models.Follow](ctx, r.collection, bson.M{"followerId": followerID}, newestFirst)
}

func (r *mongoFollows) Delete(ctx context.Context, followerID, followingID string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"followerId": followerID, "followingId": followingID})
	if err != nil {
		return translateMongoError(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoFollows) UpdateFollowerName(ctx context.Context, followerID, name string) (int64, error) {
	res, err := r.collection.UpdateMany(ctx, bson.M{"followerId": followerID}, bson.M{"$set": bson.M{"followerName": name}})
	if err != nil {
		return 0, translateMongoError(err)
	}
	return res.ModifiedCount, nil
}

func (r *mongoFollows) UpdateFollowing(ctx context.Context, followingID, name, email string) (int64, error) {
	res, err := r.collection.UpdateMany(ctx, bson.M{"followingId": followingID}, bson.M{"$set": bson.M{
		"followingName":  name,
		"followingEmail": email,
	}})
	if err != nil {
		return 0, translateMongoError(err)
	}
	return res.ModifiedCount, nil
}

func (r *mongoFollows) All(ctx context.Context) ([]models.Follow, error) {
	return findAll[models.Follow](ctx, r.collection, bson.M{})
}

type mongoLikes struct {
	collection *mongo.Collection
}

func (r *mongoLikes) Create(ctx context.Context, like *models.Like) error {
	if like.CreatedAt.IsZero() {
		like.CreatedAt = time.Now().UTC()
	}
	_, err := r.collection.InsertOne(ctx, like)
	return translateMongoError(err)
}

func (r *mongoLikes) Exists(ctx context.Context, userID, postID string) (bool, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"userId": userID, "postId": postID}, options.Count().SetLimit(1))
	if err != nil {
		return false, translateMongoError(err)
	}
	return n > 0, nil
}

func (r *mongoLikes) Delete(ctx context.Context, userID, postID string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"userId": userID, "postId": postID})
	if err != nil {
		return translateMongoError(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoLikes) Count(ctx context.Context, postID string) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"postId": postID})
	return n, translateMongoError(err)
}

func (r *mongoLikes) CountByPosts(ctx context.Context, postIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(postIDs))
	if len(postIDs) == 0 {
		return counts, nil
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "postId", Value: bson.D{{Key: "$in", Value: unique(postIDs)}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$postId"},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, translateMongoError(err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		PostID string `bson:"_id"`
		Total  int64  `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, translateMongoError(err)
	}
	for _, row := range rows {
		counts[row.PostID] = row.Total
	}
	return counts, nil
}

func (r *mongoLikes) LikedPosts(ctx context.Context, userID string, postIDs []string) (map[string]bool, error) {
	liked := make(map[string]bool)
	if userID == "" || len(postIDs) == 0 {
		return liked, nil
	}
	likes, err := findAll[models.Like](ctx, r.collection,
		bson.M{"userId": userID, "postId": bson.M{"$in": unique(postIDs)}},
		options.Find().SetProjection(bson.M{"postId": 1}),
	)
	if err != nil {
		return nil, err
	}
	for _, like := range likes {
		liked[like.PostID] = true
	}
	return liked, nil
}

func (r *mongoLikes) DeleteByPost(ctx context.Context, postID string) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"postId": postID})
	if err != nil {
		return 0, translateMongoError(err)
	}
	return res.DeletedCount, nil
}

func (r *mongoLikes) All(ctx context.Context) ([]models.Like, error) {
	return findAll[models.Like](ctx, r.collection, bson.M{})
}
