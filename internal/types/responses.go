package types

import (
	"encoding/json"
	"time"
)

type UserResponse struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
}

type ProfileResponse struct {
	ID             uint       `json:"id"`
	Email          string     `json:"email"`
	IsActive       bool       `json:"is_active"`
	IsStaff        bool       `json:"is_staff"`
	ProfilePicture string     `json:"profile_picture"`
	TrustScore     int        `json:"trust_score"`
	LastLogin      *time.Time `json:"last_login"`
	CreatedAt      time.Time  `json:"created_at"`
}

// RiskAreaRequest accepts coordinates as JSON numbers or strings. They are
// kept as decimal text so no precision is lost.
type RiskAreaRequest struct {
	Name        *string      `json:"name"`
	Description *string      `json:"description"`
	Latitude    *json.Number `json:"latitude"`
	Longitude   *json.Number `json:"longitude"`
	Radius      *float64     `json:"radius"`
}

type RiskAreaResponse struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Latitude    string    `json:"latitude"`
	Longitude   string    `json:"longitude"`
	Radius      float64   `json:"radius"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type AlertResponse struct {
	ID               uint      `json:"id"`
	User             uint      `json:"user"`
	UserEmail        string    `json:"user_email"`
	AlertType        string    `json:"alert_type"`
	Timestamp        time.Time `json:"timestamp"`
	RiskArea         *uint     `json:"risk_area"`
	LocationLink     string    `json:"location_link"`
	Audio            string    `json:"audio"`
	HasAudio         bool      `json:"has_audio"`
	CredibilityScore float64   `json:"credibility_score"`
}

type CredibilityResponse struct {
	Alert            uint    `json:"alert"`
	Total            int64   `json:"total"`
	TrueCount        int64   `json:"true_count"`
	CredibilityScore float64 `json:"credibility_score"`
}

type ValidationResponse struct {
	ID          uint      `json:"id"`
	User        uint      `json:"user"`
	Alert       uint      `json:"alert"`
	IsTrue      bool      `json:"is_true"`
	ValidatedAt time.Time `json:"validated_at"`
}

type EndorsementResponse struct {
	ID        uint      `json:"id"`
	User      uint      `json:"user"`
	Alert     uint      `json:"alert"`
	CreatedAt time.Time `json:"created_at"`
}

// ListResponse wraps one page of a list endpoint.
type ListResponse[T any] struct {
	Count   int64 `json:"count"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	Results []T   `json:"results"`
}
