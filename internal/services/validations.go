package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/silentsos/silentsos/internal/apperr"
	"github.com/silentsos/silentsos/internal/logging"
	"github.com/silentsos/silentsos/internal/metrics"
	"github.com/silentsos/silentsos/internal/models"
	"github.com/silentsos/silentsos/internal/utils"
)

const uniqueUserAlertMessage = "The fields user, alert must make a unique set."

// ValidationRecorder is called after a validation has been committed.
type ValidationRecorder interface {
	Apply(ctx context.Context, validationID uint) (bool, error)
}

type ValidationService struct {
	conn      *gorm.DB
	hook      ValidationRecorder
	allowSelf bool
	metrics   *metrics.Metrics
	log       *slog.Logger
}

func NewValidationService(conn *gorm.DB, hook ValidationRecorder, allowSelf bool, m *metrics.Metrics) *ValidationService {
	return &ValidationService{
		conn:      conn,
		hook:      hook,
		allowSelf: allowSelf,
		metrics:   m,
		log:       logging.For("validations"),
	}
}

func missingAlert(alertID uint) error {
	return apperr.NewValidation("alert", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", alertID))
}

// Record stores userID's judgment of alertID. A second judgment by the same
// user fails and leaves the first one in place. The trust hook runs only
// after the insert has committed; its failure is logged, not returned.
func (s *ValidationService) Record(ctx context.Context, userID, alertID uint, isTrue bool) (*models.AlertValidation, error) {
	if alertID == 0 {
		return nil, apperr.NewValidation("alert", "This field is required.")
	}

	validation := &models.AlertValidation{UserID: userID, AlertID: alertID, IsTrue: isTrue}

	err := s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var alert models.Alert
		if err := tx.Select("id", "user_id").First(&alert, alertID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return missingAlert(alertID)
			}
			return err
		}

		if !s.allowSelf && alert.UserID == userID {
			return apperr.NewValidation("alert", "You cannot validate your own alert.")
		}

		return tx.Omit("User", "Alert").Create(validation).Error
	})

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, apperr.NewValidation(apperr.NonFieldErrors, uniqueUserAlertMessage)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.ValidationRecorded(isTrue)

	if s.hook != nil {
		if _, err := s.hook.Apply(ctx, validation.ID); err != nil {
			s.log.Error("failed to apply trust delta", "validation_id", validation.ID, "error", err)
		}
	}

	return validation, nil
}

// List returns the caller's validations, newest first.
func (s *ValidationService) List(ctx context.Context, userID uint, page utils.Page) ([]models.AlertValidation, int64, error) {
	var (
		validations []models.AlertValidation
		count       int64
	)

	q := s.conn.WithContext(ctx).Model(&models.AlertValidation{}).Where("user_id = ?", userID).Session(&gorm.Session{})

	if err := q.Count(&count).Error; err != nil {
		return nil, 0, err
	}

	if err := q.Order("validated_at DESC, id DESC").Limit(page.Limit).Offset(page.Offset).Find(&validations).Error; err != nil {
		return nil, 0, err
	}

	return validations, count, nil
}

// Get returns one of the caller's validations.
func (s *ValidationService) Get(ctx context.Context, userID, id uint) (*models.AlertValidation, error) {
	var validation models.AlertValidation

	if err := s.conn.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&validation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}

	return &validation, nil
}
