package models

import "time"

// Follow is a directed edge from follower to followed user. Names and the
// followed email are snapshots kept current by the profile cascade.
type Follow struct {
	FollowerID     string    `gorm:"column:follower_id;primaryKey;size:36" bson:"followerId" json:"followerId"`
	FollowerName   string    `gorm:"column:follower_name;size:255" bson:"followerName" json:"followerName"`
	FollowingID    string    `gorm:"column:following_id;primaryKey;size:36;index" bson:"followingId" json:"followingId"`
	FollowingName  string    `gorm:"column:following_name;size:255" bson:"followingName" json:"followingName"`
	FollowingEmail string    `gorm:"column:following_email;size:255" bson:"followingEmail" json:"followingEmail"`
	CreatedAt      time.Time `gorm:"column:created_at" bson:"createdAt" json:"createdAt"`
}

func (Follow) TableName() string {
	return FollowsCollection
}

type FollowingView struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	ProfilePicture *string   `json:"profilePicture"`
	FollowedAt     time.Time `json:"followedAt"`
}
