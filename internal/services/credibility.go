package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/silentsos/silentsos/internal/apperr"
	"github.com/silentsos/silentsos/internal/models"
)

// Credibility summarises the validations of one alert.
type Credibility struct {
	AlertID   uint
	Total     int64
	TrueCount int64
	Score     float64
}

// CredibilityScore is the share of true validations as a percentage, zero
// when there are none.
func CredibilityScore(total, trueCount int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(trueCount) / float64(total) * 100
}

type credibilityRow struct {
	AlertID   uint
	Total     int64
	TrueCount int64
}

func credibilityQuery(tx *gorm.DB) *gorm.DB {
	return tx.Model(&models.AlertValidation{}).
		Select("alert_id, COUNT(*) AS total, COALESCE(SUM(CASE WHEN is_true THEN 1 ELSE 0 END), 0) AS true_count")
}

// AlertCredibility recomputes the credibility of alertID from the current
// validations. It returns apperr.ErrNotFound for an unknown alert.
func AlertCredibility(ctx context.Context, conn *gorm.DB, alertID uint) (*Credibility, error) {
	tx := conn.WithContext(ctx)

	var alert models.Alert
	if err := tx.Select("id").First(&alert, alertID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}

	var row credibilityRow
	if err := credibilityQuery(tx).Where("alert_id = ?", alertID).Group("alert_id").Scan(&row).Error; err != nil {
		return nil, err
	}

	return &Credibility{
		AlertID:   alertID,
		Total:     row.Total,
		TrueCount: row.TrueCount,
		Score:     CredibilityScore(row.Total, row.TrueCount),
	}, nil
}

// CredibilityScores computes the score of many alerts in one query. Alerts
// without validations map to zero.
func CredibilityScores(ctx context.Context, conn *gorm.DB, alertIDs []uint) (map[uint]float64, error) {
	scores := make(map[uint]float64, len(alertIDs))
	if len(alertIDs) == 0 {
		return scores, nil
	}

	for _, id := range alertIDs {
		scores[id] = 0
	}

	var rows []credibilityRow
	if err := credibilityQuery(conn.WithContext(ctx)).Where("alert_id IN ?", alertIDs).Group("alert_id").Scan(&rows).Error; err != nil {
		return nil, err
	}

	for _, row := range rows {
		scores[row.AlertID] = CredibilityScore(row.Total, row.TrueCount)
	}

	return scores, nil
}
