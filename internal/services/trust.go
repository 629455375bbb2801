package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/silentsos/silentsos/internal/logging"
	"github.com/silentsos/silentsos/internal/models"
)

// TrustPolicy decides how a validation moves the alert owner's trust score.
type TrustPolicy struct {
	DeltaTrue  int
	DeltaFalse int
}

func DefaultTrustPolicy() TrustPolicy {
	return TrustPolicy{DeltaTrue: 1, DeltaFalse: -1}
}

func (p TrustPolicy) Delta(isTrue bool) int {
	if isTrue {
		return p.DeltaTrue
	}
	return p.DeltaFalse
}

// ApplyDelta returns score moved by delta, never below zero.
func ApplyDelta(score, delta int) int {
	if score+delta < 0 {
		return 0
	}
	return score + delta
}

// TrustUpdater adjusts trust scores once a validation has been committed.
type TrustUpdater struct {
	conn   *gorm.DB
	policy TrustPolicy
	log    *slog.Logger
}

func NewTrustUpdater(conn *gorm.DB, policy TrustPolicy) *TrustUpdater {
	return &TrustUpdater{conn: conn, policy: policy, log: logging.For("trust")}
}

// Apply moves the alert owner's score for validationID. Each validation is
// applied at most once: the trust_applied_at marker is claimed in the same
// transaction as the score update, and a lost claim makes Apply a no-op.
// It reports whether this call applied the delta.
func (u *TrustUpdater) Apply(ctx context.Context, validationID uint) (bool, error) {
	applied := false

	err := u.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claim := tx.Model(&models.AlertValidation{}).
			Where("id = ? AND trust_applied_at IS NULL", validationID).
			UpdateColumn("trust_applied_at", time.Now())
		if claim.Error != nil {
			return claim.Error
		}
		if claim.RowsAffected == 0 {
			return nil
		}

		var validation models.AlertValidation
		if err := tx.First(&validation, validationID).Error; err != nil {
			return err
		}

		var alert models.Alert
		if err := tx.Select("id", "user_id").First(&alert, validation.AlertID).Error; err != nil {
			return err
		}

		delta := u.policy.Delta(validation.IsTrue)

		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.TrustScore{UserID: alert.UserID}).Error; err != nil {
			return err
		}

		if delta != 0 {
			err := tx.Model(&models.TrustScore{}).
				Where("user_id = ?", alert.UserID).
				UpdateColumn("score", gorm.Expr("CASE WHEN score + ? < 0 THEN 0 ELSE score + ? END", delta, delta)).Error
			if err != nil {
				return err
			}
		}

		applied = true
		u.log.Debug("trust score adjusted", "user_id", alert.UserID, "validation_id", validationID, "delta", delta)

		return nil
	})

	if err != nil {
		return false, err
	}

	return applied, nil
}

// ApplyPending processes validations whose trust delta was never applied,
// e.g. because the process stopped between commit and hook. It returns how
// many were applied.
func (u *TrustUpdater) ApplyPending(ctx context.Context) (int, error) {
	var ids []uint

	if err := u.conn.WithContext(ctx).Model(&models.AlertValidation{}).
		Where("trust_applied_at IS NULL").
		Order("id").
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}

	count := 0
	for _, id := range ids {
		ok, err := u.Apply(ctx, id)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return count, err
			}
			u.log.Warn("failed to apply trust delta", "validation_id", id, "error", err)
			continue
		}
		if ok {
			count++
		}
	}

	return count, nil
}
