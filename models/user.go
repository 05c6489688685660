package models

import (
	"time"
)

// User represents a row of the users_user table. The dashboards only count
// users; no field is interpreted.
type User struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Email      string    `gorm:"uniqueIndex;not null" json:"email"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	DateJoined time.Time `json:"date_joined"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users_user"
}
