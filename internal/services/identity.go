// Package services holds the domain operations shared by the HTTP handlers
// and the command line: identity resolution, alert ingestion, validations,
// endorsements, credibility and trust scoring.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/silentsos/silentsos/internal/apperr"
	"github.com/silentsos/silentsos/internal/models"
)

// ResolveUser returns the user owning email, creating it together with its
// trust score when it does not exist yet. It is safe to call concurrently
// for the same address: losing a creation race re-reads the winner's row.
// conn may be an open transaction; the insert then runs under a savepoint.
func ResolveUser(ctx context.Context, conn *gorm.DB, email string) (*models.User, error) {
	email = models.NormalizeEmail(email)

	if err := models.ValidateSchoolEmail(email); err != nil {
		return nil, err
	}

	user, err := findUserByEmail(ctx, conn, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = &models.User{Email: email, IsActive: true}

	err = conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return tx.Create(&models.TrustScore{UserID: user.ID}).Error
	})

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return findUserByEmail(ctx, conn, email)
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

func findUserByEmail(ctx context.Context, conn *gorm.DB, email string) (*models.User, error) {
	var user models.User

	if err := conn.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}

	return &user, nil
}

// RecordLogin stamps last_login.
func RecordLogin(ctx context.Context, conn *gorm.DB, user *models.User) error {
	now := time.Now()
	if err := conn.WithContext(ctx).Model(user).UpdateColumn("last_login", now).Error; err != nil {
		return err
	}
	user.LastLogin = &now
	return nil
}

// SetProfilePicture stores the avatar URL reported by the identity provider.
func SetProfilePicture(ctx context.Context, conn *gorm.DB, user *models.User, picture string) error {
	if picture == "" || picture == user.ProfilePicture {
		return nil
	}
	if err := conn.WithContext(ctx).Model(user).UpdateColumn("profile_picture", picture).Error; err != nil {
		return err
	}
	user.ProfilePicture = picture
	return nil
}

// ProfileUpdate lists the self-service fields a user may change. Nil fields
// are left untouched.
type ProfileUpdate struct {
	Email          *string
	ProfilePicture *string
}

// UpdateProfile applies update to the user. A new email is validated like a
// registration and must not belong to someone else.
func UpdateProfile(ctx context.Context, conn *gorm.DB, userID uint, update ProfileUpdate) (*models.User, error) {
	var user models.User

	if err := conn.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}

	if update.Email != nil {
		user.Email = *update.Email
		if user.Email == "" {
			return nil, apperr.NewValidation("email", "This field may not be blank.")
		}
	}

	if update.ProfilePicture != nil {
		user.ProfilePicture = *update.ProfilePicture
	}

	if err := conn.WithContext(ctx).Save(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.NewValidation("email", "user with this email already exists.")
		}
		return nil, err
	}

	return &user, nil
}

// Deactivate disables the account. Rows are kept so alerts stay attributable.
func Deactivate(ctx context.Context, conn *gorm.DB, userID uint) error {
	res := conn.WithContext(ctx).Model(&models.User{ID: userID}).UpdateColumn("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// TrustScoreOf returns the user's score, zero when no row exists yet.
func TrustScoreOf(ctx context.Context, conn *gorm.DB, userID uint) (int, error) {
	var score models.TrustScore

	err := conn.WithContext(ctx).Where("user_id = ?", userID).First(&score).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}

	return score.Score, err
}

// CreateSuperuser resolves email and grants it staff rights and a password.
func CreateSuperuser(ctx context.Context, conn *gorm.DB, email, password string) (*models.User, error) {
	if len(password) < 8 {
		return nil, apperr.NewValidation("password", "Ensure this field has at least 8 characters.")
	}

	user, err := ResolveUser(ctx, conn, email)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	err = conn.WithContext(ctx).Model(user).UpdateColumns(map[string]interface{}{
		"is_staff":      true,
		"is_active":     true,
		"password_hash": string(hash),
	}).Error
	if err != nil {
		return nil, err
	}

	user.IsStaff = true
	user.IsActive = true
	user.PasswordHash = string(hash)

	return user, nil
}
