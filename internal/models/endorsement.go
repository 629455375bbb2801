package models

import "time"

type Endorsement struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_endorsement_user_alert" json:"user"`
	AlertID   uint      `gorm:"not null;uniqueIndex:idx_endorsement_user_alert;index" json:"alert"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime;<-:create" json:"created_at"`

	// Relationships
	User  User  `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Alert Alert `gorm:"foreignKey:AlertID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
