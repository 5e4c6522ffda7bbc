package models

import "time"

// UserProfile is the slice of a user's profile the compatibility scorer
// needs. Editing the underlying profile invalidates every cached verdict for
// the user.
type UserProfile struct {
	UserID          string    `json:"user_id"`
	Headline        string    `json:"headline,omitempty"`
	Skills          []string  `json:"skills,omitempty"`
	ExperienceYears int       `json:"experience_years"`
	Summary         string    `json:"summary,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}
