package models

import "time"

type Post struct {
	ID        string     `gorm:"column:id;primaryKey;size:36" bson:"_id" json:"id"`
	UserID    string     `gorm:"column:user_id;size:36;not null;index" bson:"userId" json:"userId"`
	UserName  string     `gorm:"column:user_name;size:255" bson:"userName" json:"userName"`
	UserEmail string     `gorm:"column:user_email;size:255;index" bson:"userEmail" json:"userEmail"`
	Caption   string     `gorm:"column:caption;type:text;not null" bson:"caption" json:"caption"`
	Location  string     `gorm:"column:location;size:255;not null" bson:"location" json:"location"`
	ImageURL  string     `gorm:"column:image_url;type:text" bson:"image_url" json:"image_url"`
	CreatedAt time.Time  `gorm:"column:created_at;index" bson:"createdAt" json:"createdAt"`
	UpdatedAt *time.Time `gorm:"column:updated_at;autoUpdateTime:false" bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

func (Post) TableName() string {
	return PostsCollection
}

// Like records that a user liked a post. A user likes a post at most once.
type Like struct {
	UserID    string    `gorm:"column:user_id;primaryKey;size:36" bson:"userId" json:"userId"`
	PostID    string    `gorm:"column:post_id;primaryKey;size:36;index" bson:"postId" json:"postId"`
	CreatedAt time.Time `gorm:"column:created_at" bson:"createdAt" json:"createdAt"`
}

func (Like) TableName() string {
	return LikesCollection
}

// PostView is a post enriched for a particular viewer.
type PostView struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	UserName       string     `json:"userName"`
	UserEmail      string     `json:"userEmail"`
	Caption        string     `json:"caption"`
	Location       string     `json:"location"`
	ImageURL       string     `json:"image_url"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`
	ProfilePicture *string    `json:"profilePicture"`
	LikeCount      int64      `json:"likeCount"`
	IsLiked        bool       `json:"isLiked"`
}

func NewPostView(p Post) PostView {
	return PostView{
		ID:        p.ID,
		UserID:    p.UserID,
		UserName:  p.UserName,
		UserEmail: p.UserEmail,
		Caption:   p.Caption,
		Location:  p.Location,
		ImageURL:  p.ImageURL,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
