package models

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/silentsos/silentsos/internal/apperr"
)

const (
	AlertTypeSOS  = "SOS"
	AlertTypeRisk = "RISK"
)

// AllowedAudioExtensions lists the accepted audio attachment formats.
var AllowedAudioExtensions = []string{".aac", ".mp3", ".wav", ".m4a"}

type Alert struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;index" json:"user_id"`
	AlertType    string    `gorm:"size:10;not null" json:"alert_type"`
	Timestamp    time.Time `gorm:"not null;autoCreateTime;<-:create;index" json:"timestamp"`
	RiskAreaID   *uint     `gorm:"index" json:"risk_area_id"`
	LocationLink string    `gorm:"size:500" json:"location_link"`
	Audio        string    `gorm:"size:255" json:"audio"` // storage key

	// Relationships
	User     User      `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	RiskArea *RiskArea `gorm:"foreignKey:RiskAreaID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
}

// HasAudio reports whether a recording is attached.
func (a *Alert) HasAudio() bool {
	return a.Audio != ""
}

// ValidateAlertType checks alertType against the configured set.
func ValidateAlertType(alertType string, allowed []string) error {
	if alertType == "" {
		return apperr.NewValidation("alert_type", "This field is required.")
	}

	for _, t := range allowed {
		if alertType == t {
			return nil
		}
	}

	return apperr.NewValidation("alert_type", "\""+alertType+"\" is not a valid choice.")
}

// ValidateAudioFilename checks the attachment extension, ignoring case.
func ValidateAudioFilename(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))

	for _, allowed := range AllowedAudioExtensions {
		if ext == allowed {
			return nil
		}
	}

	return apperr.NewValidation("audio", "File extension \""+strings.TrimPrefix(ext, ".")+"\" is not allowed. Allowed extensions are: aac, mp3, wav, m4a.")
}
