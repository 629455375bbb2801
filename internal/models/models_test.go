package models_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/silentsos/silentsos/internal/apperr"
	"github.com/silentsos/silentsos/internal/models"
	"github.com/silentsos/silentsos/internal/testutil"
)

func TestValidateSchoolEmail(t *testing.T) {
	models.SetEmailDomain(testutil.Domain)

	tests := []struct {
		email string
		ok    bool
	}{
		{"alice@ictuniversity.edu.cm", true},
		{"alice@gmail.com", false},
		{"alice@ictuniversity.edu.cm.evil.com", false},
		{"not-an-email", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			err := models.ValidateSchoolEmail(tt.email)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperr.HasField(err, "email"), "expected an email field error, got %v", err)
		})
	}
}

func TestUser_BeforeSaveNormalisesAndRejectsOffDomain(t *testing.T) {
	conn := testutil.NewTestDB(t)

	user := models.User{Email: "  Bob@ICTUniversity.edu.cm "}
	require.NoError(t, conn.Create(&user).Error)
	assert.Equal(t, "bob@ictuniversity.edu.cm", user.Email)

	bad := models.User{Email: "bob@gmail.com"}
	err := conn.Create(&bad).Error
	assert.True(t, apperr.HasField(err, "email"))

	var count int64
	require.NoError(t, conn.Model(&models.User{}).Where("email = ?", "bob@gmail.com").Count(&count).Error)
	assert.Zero(t, count)

	user.Email = "bob@yahoo.com"
	assert.True(t, apperr.HasField(conn.Save(&user).Error, "email"), "email changes are validated too")
}

func TestUser_DuplicateEmailIsTranslated(t *testing.T) {
	conn := testutil.NewTestDB(t)
	testutil.CreateUser(t, conn, "carol")

	err := conn.Create(&models.User{Email: "carol" + testutil.Domain}).Error
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey), "got %v", err)
}

func TestRiskArea_Validate(t *testing.T) {
	area := models.RiskArea{Name: " Library car park ", Latitude: " 3.866700", Longitude: "11.5167", Radius: 0}
	require.NoError(t, area.Validate())
	assert.Equal(t, "Library car park", area.Name)
	assert.Equal(t, "3.866700", area.Latitude, "coordinates keep their exact text")

	bad := models.RiskArea{Latitude: "91", Longitude: "abc", Radius: -1}
	err := bad.Validate()

	var vErr *apperr.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "name")
	assert.Contains(t, vErr.Fields, "latitude")
	assert.Contains(t, vErr.Fields, "longitude")
	assert.Contains(t, vErr.Fields, "radius")

	tooPrecise := models.RiskArea{Name: "x", Latitude: "3.1234567", Longitude: "1", Radius: 1}
	assert.True(t, apperr.HasField(tooPrecise.Validate(), "latitude"))
}

func TestValidateAudioFilename(t *testing.T) {
	for _, name := range []string{"a.mp3", "b.WAV", "c.M4a", "d.aac"} {
		assert.NoError(t, models.ValidateAudioFilename(name), name)
	}

	for _, name := range []string{"virus.exe", "notes.txt", "noext", "mp3"} {
		assert.True(t, apperr.HasField(models.ValidateAudioFilename(name), "audio"), name)
	}
}

func TestValidateAlertType(t *testing.T) {
	allowed := []string{models.AlertTypeSOS}

	assert.NoError(t, models.ValidateAlertType("SOS", allowed))
	assert.True(t, apperr.HasField(models.ValidateAlertType("RISK", allowed), "alert_type"))
	assert.True(t, apperr.HasField(models.ValidateAlertType("", allowed), "alert_type"))
}

func TestAlert_TimestampIsImmutable(t *testing.T) {
	conn := testutil.NewTestDB(t)
	user := testutil.CreateUser(t, conn, "dave")
	alert := testutil.CreateAlert(t, conn, user)

	require.False(t, alert.Timestamp.IsZero())
	original := alert.Timestamp

	alert.Timestamp = original.Add(-48 * time.Hour)
	alert.LocationLink = "http://maps.example.org/y"
	require.NoError(t, conn.Omit("User", "RiskArea").Save(alert).Error)

	var reloaded models.Alert
	require.NoError(t, conn.First(&reloaded, alert.ID).Error)
	assert.WithinDuration(t, original, reloaded.Timestamp, time.Second)
	assert.Equal(t, "http://maps.example.org/y", reloaded.LocationLink)
}

func TestRiskAreaDeleteNullsAlertReference(t *testing.T) {
	conn := testutil.NewTestDB(t)
	user := testutil.CreateUser(t, conn, "erin")
	area := testutil.CreateRiskArea(t, conn, "Stairwell B")

	alert := &models.Alert{UserID: user.ID, AlertType: models.AlertTypeRisk, RiskAreaID: &area.ID}
	require.NoError(t, conn.Omit("User", "RiskArea").Create(alert).Error)

	require.NoError(t, conn.Delete(&models.RiskArea{}, area.ID).Error)

	var reloaded models.Alert
	require.NoError(t, conn.First(&reloaded, alert.ID).Error)
	assert.Nil(t, reloaded.RiskAreaID)
}

func TestUserDeleteCascadesToAlerts(t *testing.T) {
	conn := testutil.NewTestDB(t)
	user := testutil.CreateUser(t, conn, "frank")
	testutil.CreateAlert(t, conn, user)

	require.NoError(t, conn.Delete(&models.User{}, user.ID).Error)

	var count int64
	require.NoError(t, conn.Model(&models.Alert{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Zero(t, count)
}
