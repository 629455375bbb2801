package models

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/silentsos/silentsos/internal/apperr"
)

// Coordinates are kept as decimal text with up to 6 fractional digits so they
// round-trip exactly.
var decimalPattern = regexp.MustCompile(`^-?\d{1,3}(\.\d{1,6})?$`)

type RiskArea struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Latitude    string    `gorm:"size:12;not null" json:"latitude"`
	Longitude   string    `gorm:"size:12;not null" json:"longitude"`
	Radius      float64   `gorm:"not null" json:"radius"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks field constraints and normalises the coordinates.
func (r *RiskArea) Validate() error {
	var v apperr.ValidationError

	r.Name = strings.TrimSpace(r.Name)
	switch {
	case r.Name == "":
		v.Add("name", "This field is required.")
	case len([]rune(r.Name)) > 100:
		v.Add("name", "Ensure this field has no more than 100 characters.")
	}

	r.Latitude = validateCoordinate(&v, "latitude", r.Latitude, 90)
	r.Longitude = validateCoordinate(&v, "longitude", r.Longitude, 180)

	if r.Radius < 0 {
		v.Add("radius", "Ensure this value is greater than or equal to 0.")
	}

	return v.Err()
}

func validateCoordinate(v *apperr.ValidationError, field, raw string, limit float64) string {
	value := strings.TrimSpace(raw)

	if value == "" {
		v.Add(field, "This field is required.")
		return value
	}

	if !decimalPattern.MatchString(value) {
		v.Add(field, "Enter a number with at most 3 digits before and 6 after the decimal point.")
		return value
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f < -limit || f > limit {
		bound := strconv.FormatFloat(limit, 'f', 0, 64)
		v.Add(field, "Ensure this value is between -"+bound+" and "+bound+".")
	}

	return value
}

func (r *RiskArea) BeforeSave(tx *gorm.DB) error {
	return r.Validate()
}
