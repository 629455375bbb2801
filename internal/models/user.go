package models

import (
	"net/mail"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/silentsos/silentsos/internal/apperr"
)

const DefaultEmailDomain = "@ictuniversity.edu.cm"

var (
	emailDomainMu sync.RWMutex
	emailDomain   = DefaultEmailDomain
)

// SetEmailDomain changes the institutional suffix every user email must carry.
func SetEmailDomain(domain string) {
	emailDomainMu.Lock()
	defer emailDomainMu.Unlock()
	emailDomain = strings.ToLower(strings.TrimSpace(domain))
}

func EmailDomain() string {
	emailDomainMu.RLock()
	defer emailDomainMu.RUnlock()
	return emailDomain
}

type User struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Email          string     `gorm:"uniqueIndex;not null;size:254" json:"email"`
	IsActive       bool       `gorm:"not null;default:true" json:"is_active"`
	IsStaff        bool       `gorm:"not null;default:false" json:"is_staff"`
	ProfilePicture string     `gorm:"size:500" json:"profile_picture"`
	PasswordHash   string     `gorm:"size:255" json:"-"`
	LastLogin      *time.Time `json:"last_login"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NormalizeEmail trims the address and lower-cases it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateSchoolEmail checks that email is a well-formed address on the
// institutional domain.
func ValidateSchoolEmail(email string) error {
	if email == "" {
		return apperr.NewValidation("email", "This field is required.")
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperr.NewValidation("email", "Enter a valid email address.")
	}

	if !strings.HasSuffix(strings.ToLower(email), EmailDomain()) {
		return apperr.NewValidation("email", "You must use your ictu email to register.")
	}

	return nil
}

// HasUsablePassword reports whether the user can sign in with a password.
func (u *User) HasUsablePassword() bool {
	return u.PasswordHash != ""
}

// BeforeSave keeps the email normalised and on-domain. A loaded row updated
// column by column without its email is left alone.
func (u *User) BeforeSave(tx *gorm.DB) error {
	if u.ID != 0 && u.Email == "" {
		return nil
	}

	u.Email = NormalizeEmail(u.Email)

	return ValidateSchoolEmail(u.Email)
}
