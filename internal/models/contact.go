package models

import "time"

// Contact is owned by a user. This module only reads contacts.
type Contact struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Surname     string    `json:"surname"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phone_number"`
	Birthday    time.Time `json:"birthday"`
	Notes       *string   `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
}
