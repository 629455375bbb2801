// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/silentsos/silentsos/db"
	"github.com/silentsos/silentsos/internal/models"
)

const Domain = "@ictuniversity.edu.cm"

// NewTestDB opens a migrated in-memory SQLite database and installs it as
// db.DB for the duration of the test.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	models.SetEmailDomain(Domain)

	conn, err := db.Open("sqlite", "file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))

	previous := db.DB
	db.DB = conn

	t.Cleanup(func() {
		db.DB = previous
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return conn
}

// CreateUser inserts an active user with a trust score row.
func CreateUser(t *testing.T, conn *gorm.DB, local string) *models.User {
	t.Helper()

	user := &models.User{Email: local + Domain, IsActive: true}
	require.NoError(t, conn.Create(user).Error)
	require.NoError(t, conn.Create(&models.TrustScore{UserID: user.ID}).Error)

	return user
}

// CreateAlert inserts an SOS alert owned by user.
func CreateAlert(t *testing.T, conn *gorm.DB, user *models.User) *models.Alert {
	t.Helper()

	alert := &models.Alert{UserID: user.ID, AlertType: models.AlertTypeSOS, LocationLink: "http://maps.example.org/x"}
	require.NoError(t, conn.Omit("User", "RiskArea").Create(alert).Error)

	return alert
}

// CreateRiskArea inserts a small risk area.
func CreateRiskArea(t *testing.T, conn *gorm.DB, name string) *models.RiskArea {
	t.Helper()

	area := &models.RiskArea{Name: name, Description: "poorly lit", Latitude: "3.866700", Longitude: "11.516700", Radius: 150}
	require.NoError(t, conn.Create(area).Error)

	return area
}

// ValidationCount returns how many validations exist for alertID.
func ValidationCount(t *testing.T, conn *gorm.DB, alertID uint) int64 {
	t.Helper()

	var n int64
	require.NoError(t, conn.Model(&models.AlertValidation{}).Where("alert_id = ?", alertID).Count(&n).Error)

	return n
}
