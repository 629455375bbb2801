package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"github.com/silentsos/silentsos/internal/apperr"
	"github.com/silentsos/silentsos/internal/broadcast"
	"github.com/silentsos/silentsos/internal/config"
	"github.com/silentsos/silentsos/internal/logging"
	"github.com/silentsos/silentsos/internal/metrics"
	"github.com/silentsos/silentsos/internal/models"
	"github.com/silentsos/silentsos/internal/storage"
	"github.com/silentsos/silentsos/internal/utils"
)

// AlertNotifier hands a created alert to the broadcast layer without waiting.
type AlertNotifier interface {
	PublishAsync(event broadcast.AlertEvent)
}

type AlertOptions struct {
	AlertTypes     []string
	Visibility     string
	AllowAnonymous bool
}

// AudioUpload is an audio attachment received with a new alert.
type AudioUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// RiskAreaRef points at an existing risk area by ID or carries a new one to
// create with the alert. Both empty means no risk area.
type RiskAreaRef struct {
	ID  *uint
	New *models.RiskArea
}

type AlertInput struct {
	// UserID is the authenticated caller, zero for anonymous submissions.
	UserID       uint
	Email        string
	AlertType    string
	LocationLink string
	RiskArea     RiskAreaRef
	Audio        *AudioUpload
}

// AlertUpdate carries the mutable alert fields. Nil fields are unchanged.
type AlertUpdate struct {
	AlertType     *string
	LocationLink  *string
	RiskAreaID    *uint
	ClearRiskArea bool
}

type AlertService struct {
	conn     *gorm.DB
	store    storage.AudioStore
	notifier AlertNotifier
	opts     AlertOptions
	metrics  *metrics.Metrics
	log      *slog.Logger
	now      func() time.Time
}

func NewAlertService(conn *gorm.DB, store storage.AudioStore, notifier AlertNotifier, opts AlertOptions, m *metrics.Metrics) *AlertService {
	return &AlertService{
		conn:     conn,
		store:    store,
		notifier: notifier,
		opts:     opts,
		metrics:  m,
		log:      logging.For("alerts"),
		now:      time.Now,
	}
}

func (s *AlertService) Options() AlertOptions {
	return s.opts
}

// merge copies the field errors of err into v and returns err when it is
// not a ValidationError.
func merge(v *apperr.ValidationError, err error) error {
	if err == nil {
		return nil
	}

	var vErr *apperr.ValidationError
	if !errors.As(err, &vErr) {
		return err
	}

	for field, msgs := range vErr.Fields {
		for _, msg := range msgs {
			v.Add(field, msg)
		}
	}

	return nil
}

func missingRiskArea(id uint) error {
	return apperr.NewValidation("risk_area", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id))
}

// submitter returns the authenticated submitter. An anonymous submitter comes
// back as a nil user and the normalised email, resolved later inside the
// alert transaction so a failed create leaves no account behind.
func (s *AlertService) submitter(ctx context.Context, in AlertInput) (*models.User, string, error) {
	if in.UserID != 0 {
		var user models.User
		if err := s.conn.WithContext(ctx).First(&user, in.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, "", apperr.ErrNotAuthenticated
			}
			return nil, "", err
		}
		if !user.IsActive {
			return nil, "", apperr.ErrAccountDisabled
		}
		return &user, "", nil
	}

	if !s.opts.AllowAnonymous {
		return nil, "", apperr.ErrNotAuthenticated
	}

	email := models.NormalizeEmail(in.Email)
	if email == "" {
		return nil, "", apperr.NewValidation("email", "This field is required.")
	}

	if err := models.ValidateSchoolEmail(email); err != nil {
		return nil, "", err
	}

	existing, err := findUserByEmail(ctx, s.conn, email)
	switch {
	case err == nil && !existing.IsActive:
		return nil, "", apperr.ErrAccountDisabled
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, "", err
	}

	return nil, email, nil
}

func (s *AlertService) validateInput(ctx context.Context, in *AlertInput) error {
	var v apperr.ValidationError

	if err := merge(&v, models.ValidateAlertType(in.AlertType, s.opts.AlertTypes)); err != nil {
		return err
	}

	if in.Audio != nil {
		if err := merge(&v, models.ValidateAudioFilename(in.Audio.Filename)); err != nil {
			return err
		}
	}

	link, err := utils.NormalizeURL(in.LocationLink)
	if err != nil {
		v.Add("location_link", "Enter a valid URL.")
	}
	in.LocationLink = link

	switch {
	case in.RiskArea.New != nil:
		if err := in.RiskArea.New.Validate(); err != nil {
			var vErr *apperr.ValidationError
			if !errors.As(err, &vErr) {
				return err
			}
			for field, msgs := range vErr.Fields {
				for _, msg := range msgs {
					v.Add("risk_area", field+": "+msg)
				}
			}
		}
	case in.RiskArea.ID != nil:
		var count int64
		if err := s.conn.WithContext(ctx).Model(&models.RiskArea{}).Where("id = ?", *in.RiskArea.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			if err := merge(&v, missingRiskArea(*in.RiskArea.ID)); err != nil {
				return err
			}
		}
	}

	return v.Err()
}

// Create validates and stores a new alert, then publishes it. Nothing is
// written when validation fails. The publish is detached: its outcome never
// affects the returned alert.
func (s *AlertService) Create(ctx context.Context, in AlertInput) (*models.Alert, error) {
	user, email, err := s.submitter(ctx, in)
	if err != nil {
		return nil, err
	}

	if err := s.validateInput(ctx, &in); err != nil {
		return nil, err
	}

	alert := &models.Alert{
		AlertType:    in.AlertType,
		LocationLink: in.LocationLink,
		RiskAreaID:   in.RiskArea.ID,
	}

	if in.Audio != nil {
		key := storage.NewAudioKey(s.now(), filepath.Ext(in.Audio.Filename))
		if err := s.store.Save(ctx, key, in.Audio.Body, in.Audio.Size, in.Audio.ContentType); err != nil {
			return nil, fmt.Errorf("failed to store audio: %w", err)
		}
		alert.Audio = key
	}

	err = s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if user == nil {
			resolved, err := ResolveUser(ctx, tx, email)
			if err != nil {
				return err
			}
			if !resolved.IsActive {
				return apperr.ErrAccountDisabled
			}
			user = resolved
		}
		alert.UserID = user.ID

		if in.RiskArea.New != nil {
			if err := tx.Create(in.RiskArea.New).Error; err != nil {
				return err
			}
			alert.RiskAreaID = &in.RiskArea.New.ID
		}

		return tx.Omit("User", "RiskArea").Create(alert).Error
	})

	if err != nil {
		if alert.Audio != "" {
			if delErr := s.store.Delete(context.WithoutCancel(ctx), alert.Audio); delErr != nil {
				s.log.Warn("failed to remove orphaned audio", "key", alert.Audio, "error", delErr)
			}
		}
		return nil, err
	}

	alert.User = *user

	s.metrics.AlertCreated(alert.AlertType)
	s.log.Info("alert created", "alert_id", alert.ID, "user_id", user.ID, "type", alert.AlertType, "has_audio", alert.HasAudio())

	if s.notifier != nil {
		s.notifier.PublishAsync(broadcast.NewAlertEvent(alert, user.Email))
	}

	return alert, nil
}

func (s *AlertService) visible(tx *gorm.DB, userID uint) *gorm.DB {
	if s.opts.Visibility == config.VisibilityAll {
		return tx
	}
	return tx.Where("user_id = ?", userID)
}

// List returns the alerts userID may see, newest first.
func (s *AlertService) List(ctx context.Context, userID uint, page utils.Page) ([]models.Alert, int64, error) {
	var (
		alerts []models.Alert
		count  int64
	)

	q := s.visible(s.conn.WithContext(ctx).Model(&models.Alert{}), userID).Session(&gorm.Session{})

	if err := q.Count(&count).Error; err != nil {
		return nil, 0, err
	}

	if err := q.Preload("User").Order("timestamp DESC, id DESC").Limit(page.Limit).Offset(page.Offset).Find(&alerts).Error; err != nil {
		return nil, 0, err
	}

	return alerts, count, nil
}

// Get returns alert id if userID may see it.
func (s *AlertService) Get(ctx context.Context, userID, id uint) (*models.Alert, error) {
	var alert models.Alert

	err := s.visible(s.conn.WithContext(ctx), userID).Preload("User").Where("id = ?", id).First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &alert, nil
}

// owned loads an alert for mutation by userID. Alerts of other users are
// reported as missing unless every alert is visible.
func (s *AlertService) owned(ctx context.Context, userID, id uint) (*models.Alert, error) {
	var alert models.Alert

	err := s.conn.WithContext(ctx).First(&alert, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if alert.UserID != userID {
		if s.opts.Visibility == config.VisibilityAll {
			return nil, apperr.ErrForbidden
		}
		return nil, apperr.ErrNotFound
	}

	return &alert, nil
}

// Update changes the mutable fields of an alert owned by userID. The owner
// and timestamp never change.
func (s *AlertService) Update(ctx context.Context, userID, id uint, update AlertUpdate) (*models.Alert, error) {
	alert, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	var v apperr.ValidationError

	if update.AlertType != nil {
		if err := merge(&v, models.ValidateAlertType(*update.AlertType, s.opts.AlertTypes)); err != nil {
			return nil, err
		}
		alert.AlertType = *update.AlertType
	}

	if update.LocationLink != nil {
		link, err := utils.NormalizeURL(*update.LocationLink)
		if err != nil {
			v.Add("location_link", "Enter a valid URL.")
		}
		alert.LocationLink = link
	}

	switch {
	case update.ClearRiskArea:
		alert.RiskAreaID = nil
	case update.RiskAreaID != nil:
		var count int64
		if err := s.conn.WithContext(ctx).Model(&models.RiskArea{}).Where("id = ?", *update.RiskAreaID).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			if err := merge(&v, missingRiskArea(*update.RiskAreaID)); err != nil {
				return nil, err
			}
		}
		alert.RiskAreaID = update.RiskAreaID
	}

	if err := v.Err(); err != nil {
		return nil, err
	}

	if err := s.conn.WithContext(ctx).Omit("User", "RiskArea").Save(alert).Error; err != nil {
		return nil, err
	}

	return s.Get(ctx, userID, id)
}

// Delete removes an alert owned by userID together with its audio.
func (s *AlertService) Delete(ctx context.Context, userID, id uint) error {
	alert, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.conn.WithContext(ctx).Delete(&models.Alert{}, alert.ID).Error; err != nil {
		return err
	}

	if alert.Audio != "" {
		if err := s.store.Delete(ctx, alert.Audio); err != nil {
			s.log.Warn("failed to delete alert audio", "alert_id", alert.ID, "key", alert.Audio, "error", err)
		}
	}

	return nil
}

// AudioURL returns a download URL for the alert's recording, or "" if none.
func (s *AlertService) AudioURL(ctx context.Context, alert *models.Alert) string {
	if !alert.HasAudio() || s.store == nil {
		return ""
	}

	url, err := s.store.URL(ctx, alert.Audio)
	if err != nil {
		s.log.Warn("failed to build audio URL", "alert_id", alert.ID, "error", err)
		return ""
	}

	return url
}
