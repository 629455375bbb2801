package models

import (
	"time"

	"gorm.io/datatypes"
)

const ProviderGoogle = "google"

// SocialAccount links a user to an external identity provider account.
type SocialAccount struct {
	ID        uint           `gorm:"primaryKey"`
	UserID    uint           `gorm:"not null;index"`
	Provider  string         `gorm:"size:30;not null;uniqueIndex:idx_social_provider_uid"`
	UID       string         `gorm:"size:191;not null;uniqueIndex:idx_social_provider_uid"`
	ExtraData datatypes.JSON
	CreatedAt time.Time
	UpdatedAt time.Time

	// Relationships
	User User `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// SocialToken stores the provider tokens obtained for a SocialAccount.
type SocialToken struct {
	ID              uint   `gorm:"primaryKey"`
	SocialAccountID uint   `gorm:"not null;uniqueIndex"`
	Token           string `gorm:"type:text;not null"`
	TokenSecret     string `gorm:"type:text"` // refresh token
	ExpiresAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Relationships
	SocialAccount SocialAccount `gorm:"foreignKey:SocialAccountID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}
