package models

import "time"

// AlertValidation is one user's true/false judgment of an alert.
type AlertValidation struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"not null;uniqueIndex:idx_validation_user_alert" json:"user_id"`
	AlertID        uint       `gorm:"not null;uniqueIndex:idx_validation_user_alert;index" json:"alert_id"`
	IsTrue         bool       `gorm:"not null" json:"is_true"`
	ValidatedAt    time.Time  `gorm:"not null;autoCreateTime;<-:create" json:"validated_at"`
	TrustAppliedAt *time.Time `json:"-"`

	// Relationships
	User  User  `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Alert Alert `gorm:"foreignKey:AlertID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
