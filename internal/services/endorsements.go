package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/silentsos/silentsos/internal/apperr"
	"github.com/silentsos/silentsos/internal/models"
	"github.com/silentsos/silentsos/internal/utils"
)

// Endorse records userID's support for alertID, once per pair.
func Endorse(ctx context.Context, conn *gorm.DB, userID, alertID uint) (*models.Endorsement, error) {
	if alertID == 0 {
		return nil, apperr.NewValidation("alert", "This field is required.")
	}

	endorsement := &models.Endorsement{UserID: userID, AlertID: alertID}

	err := conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var alert models.Alert
		if err := tx.Select("id").First(&alert, alertID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return missingAlert(alertID)
			}
			return err
		}

		return tx.Omit("User", "Alert").Create(endorsement).Error
	})

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, apperr.NewValidation(apperr.NonFieldErrors, uniqueUserAlertMessage)
	}
	if err != nil {
		return nil, err
	}

	return endorsement, nil
}

// ListEndorsements returns endorsements of every user, newest first,
// optionally narrowed to one alert.
func ListEndorsements(ctx context.Context, conn *gorm.DB, alertID uint, page utils.Page) ([]models.Endorsement, int64, error) {
	var (
		endorsements []models.Endorsement
		count        int64
	)

	q := conn.WithContext(ctx).Model(&models.Endorsement{})
	if alertID != 0 {
		q = q.Where("alert_id = ?", alertID)
	}
	q = q.Session(&gorm.Session{})

	if err := q.Count(&count).Error; err != nil {
		return nil, 0, err
	}

	if err := q.Order("created_at DESC, id DESC").Limit(page.Limit).Offset(page.Offset).Find(&endorsements).Error; err != nil {
		return nil, 0, err
	}

	return endorsements, count, nil
}

func GetEndorsement(ctx context.Context, conn *gorm.DB, id uint) (*models.Endorsement, error) {
	var endorsement models.Endorsement

	if err := conn.WithContext(ctx).First(&endorsement, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}

	return &endorsement, nil
}

// DeleteEndorsement removes an endorsement owned by userID.
func DeleteEndorsement(ctx context.Context, conn *gorm.DB, userID, id uint) error {
	endorsement, err := GetEndorsement(ctx, conn, id)
	if err != nil {
		return err
	}

	if endorsement.UserID != userID {
		return apperr.ErrForbidden
	}

	return conn.WithContext(ctx).Delete(&models.Endorsement{}, id).Error
}
