package models

import (
	"encoding/json"
	"time"
)

// User represents a user account in the system.
type User struct {
	ID           string       `json:"id"`
	Username     string       `json:"username"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"` // Never expose this to the client
	DisplayName  string       `json:"displayName"`
	Bio          string       `json:"bio"`
	Postcode     string       `json:"postcode"`
	Tier         string       `json:"tier"`
	IsAdmin      bool         `json:"isAdmin"`
	SettingsJSON string       `json:"-"`
	Settings     UserSettings `json:"settings"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// UserSettings holds per-user preferences.
type UserSettings struct {
	Units           string `json:"units" validate:"oneof=metric imperial"`
	Notifications   bool   `json:"notifications"`
	DefaultServings int    `json:"defaultServings" validate:"min=1,max=20"`
}

// DefaultSettings are applied when a user has never saved preferences.
func DefaultSettings() UserSettings {
	return UserSettings{Units: "metric", Notifications: true, DefaultServings: 4}
}

// PrepareForDB marshals the settings into their JSON column.
func (u *User) PrepareForDB() {
	b, _ := json.Marshal(u.Settings)
	u.SettingsJSON = string(b)
}

// PrepareForAPI unmarshals the settings column, filling defaults for missing values.
func (u *User) PrepareForAPI() {
	u.Settings = DefaultSettings()
	if u.SettingsJSON != "" {
		_ = json.Unmarshal([]byte(u.SettingsJSON), &u.Settings)
	}
}

// PublicProfile is what other users can see about an account.
type PublicProfile struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	DisplayName    string    `json:"displayName"`
	Bio            string    `json:"bio"`
	Followers      int       `json:"followers"`
	Following      int       `json:"following"`
	PublicRecipes  int       `json:"publicRecipes"`
	IsFollowedByMe bool      `json:"isFollowedByMe"`
	CreatedAt      time.Time `json:"createdAt"`
}
