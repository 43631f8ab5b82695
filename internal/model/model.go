package model

import (
	"time"

	"github.com/freeeve/qdice/pkg/dice"
)

// User represents a registered user.
type User struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	ProviderID  string    `json:"provider_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Points      int       `json:"points"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Level derives the user's level from accumulated points.
func (u *User) Level() int {
	level := 1
	for threshold := 100; u.Points >= threshold; threshold *= 2 {
		level++
	}
	return level
}

// DiceUser converts the record into the identity the table engine acts on.
func (u *User) DiceUser() *dice.User {
	return &dice.User{
		ID:      u.ID,
		Name:    u.DisplayName,
		Picture: u.AvatarURL,
		Points:  u.Points,
		Level:   u.Level(),
	}
}

// ChatLine is one stored chat message.
type ChatLine struct {
	UserID  string    `json:"user_id,omitempty"`
	Name    string    `json:"name"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}
