package models

import "time"

const (
	UsersCollection   = "users"
	PostsCollection   = "posts"
	FollowsCollection = "follows"
	LikesCollection   = "likes"
)

// Collections lists every persisted collection in migration order.
var Collections = []string{UsersCollection, PostsCollection, FollowsCollection, LikesCollection}

type User struct {
	ID             string    `gorm:"column:id;primaryKey;size:36" bson:"_id" json:"id"`
	Name           string    `gorm:"column:name;size:255;not null;index" bson:"name" json:"name"`
	Email          string    `gorm:"column:email;size:255;not null;uniqueIndex" bson:"email" json:"email"`
	Password       string    `gorm:"column:password;size:255;not null" bson:"password" json:"-"`
	Bio            string    `gorm:"column:bio;type:text" bson:"bio" json:"bio"`
	ProfilePicture string    `gorm:"column:profile_picture;type:text" bson:"profilePicture,omitempty" json:"profilePicture"`
	CreatedAt      time.Time `gorm:"column:created_at" bson:"createdAt" json:"createdAt"`
}

func (User) TableName() string {
	return UsersCollection
}

// Identity is the subset of a user carried by a session.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (u User) Identity() Identity {
	return Identity{ID: u.ID, Name: u.Name, Email: u.Email}
}

// PublicUser is a user as exposed to other users; it never carries a password.
type PublicUser struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	Bio            string  `json:"bio"`
	ProfilePicture *string `json:"profilePicture"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		Bio:            u.Bio,
		ProfilePicture: OptionalString(u.ProfilePicture),
	}
}

// OptionalString maps the empty string to nil.
func OptionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
