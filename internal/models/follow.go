package models

import "time"

// Follow represents a follow relationship
type Follow struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	FollowerID  string    `json:"follower_id" gorm:"type:varchar(36);index;uniqueIndex:idx_follower_following"`
	FollowingID string    `json:"following_id" gorm:"type:varchar(36);index;uniqueIndex:idx_follower_following"`
	CreatedAt   time.Time `json:"created_at"`
}
