package models

import "time"

// CommunitySettings is the single settings row of the community.
type CommunitySettings struct {
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	LogoURL        string    `json:"logo_url,omitempty"`
	LogoKey        string    `json:"-"`
	IsPrivate      bool      `json:"is_private"`
	WelcomeMessage string    `json:"welcome_message"`
	UpdatedAt      time.Time `json:"updated_at"`
}
