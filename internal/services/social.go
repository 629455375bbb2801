package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/oauth2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/silentsos/silentsos/internal/apperr"
	"github.com/silentsos/silentsos/internal/models"
)

// ExternalLogin is what an OAuth provider reported about a signed-in user.
type ExternalLogin struct {
	Provider     string
	UID          string
	RawData      map[string]interface{}
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// LinkSocialAccount upserts the provider account for user and replaces its
// stored token.
func LinkSocialAccount(ctx context.Context, conn *gorm.DB, user *models.User, login ExternalLogin) (*models.SocialAccount, error) {
	extra, err := json.Marshal(login.RawData)
	if err != nil {
		return nil, err
	}

	var account models.SocialAccount

	err = conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("provider = ? AND uid = ?", login.Provider, login.UID).First(&account).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			account = models.SocialAccount{
				UserID:    user.ID,
				Provider:  login.Provider,
				UID:       login.UID,
				ExtraData: datatypes.JSON(extra),
			}
			if err := tx.Omit("User").Create(&account).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			account.UserID = user.ID
			account.ExtraData = datatypes.JSON(extra)
			if err := tx.Omit("User").Save(&account).Error; err != nil {
				return err
			}
		}

		if login.AccessToken == "" {
			return nil
		}

		token := models.SocialToken{SocialAccountID: account.ID}
		if err := tx.Where("social_account_id = ?", account.ID).First(&token).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		token.Token = login.AccessToken
		if login.RefreshToken != "" {
			token.TokenSecret = login.RefreshToken
		}
		token.ExpiresAt = nil
		if !login.ExpiresAt.IsZero() {
			expires := login.ExpiresAt
			token.ExpiresAt = &expires
		}

		return tx.Omit("SocialAccount").Save(&token).Error
	})

	if err != nil {
		return nil, err
	}

	return &account, nil
}

// LinkedToken returns the stored provider token of the user's account.
// It fails with ErrNoLinkedAccount or ErrNoExternalToken.
func LinkedToken(ctx context.Context, conn *gorm.DB, userID uint, provider string) (*models.SocialToken, error) {
	var account models.SocialAccount

	err := conn.WithContext(ctx).Where("user_id = ? AND provider = ?", userID, provider).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNoLinkedAccount
	}
	if err != nil {
		return nil, err
	}

	var token models.SocialToken

	err = conn.WithContext(ctx).Where("social_account_id = ?", account.ID).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNoExternalToken
	}
	if err != nil {
		return nil, err
	}

	return &token, nil
}

// OAuth2Token converts a stored token for use with golang.org/x/oauth2.
func OAuth2Token(token *models.SocialToken) *oauth2.Token {
	t := &oauth2.Token{
		AccessToken:  token.Token,
		RefreshToken: token.TokenSecret,
		TokenType:    "Bearer",
	}
	if token.ExpiresAt != nil {
		t.Expiry = *token.ExpiresAt
	}
	return t
}

// DeleteToken forgets a stored provider token.
func DeleteToken(ctx context.Context, conn *gorm.DB, token *models.SocialToken) error {
	return conn.WithContext(ctx).Delete(&models.SocialToken{}, token.ID).Error
}
