package models

import (
	"time"

	"github.com/google/uuid"
)

type ApplicationStatus string

const (
	StatusSubmitted  ApplicationStatus = "submitted"
	StatusClassified ApplicationStatus = "classified"
)

// Application is one applicant record with their CV stored as a blob. The
// prediction fields are written only by the classification service.
type Application struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Name       string    `gorm:"type:text;not null" json:"name"`
	Email      string    `gorm:"type:text;not null;uniqueIndex:idx_applicant_identity" json:"email"`
	NationalID string    `gorm:"type:text;not null;uniqueIndex:idx_applicant_identity" json:"national_id"`
	Phone      string    `gorm:"type:text" json:"phone,omitempty"`

	ProfessionApplied string `gorm:"type:text" json:"profession_applied,omitempty"`

	CVFilename string `gorm:"type:text" json:"cv_filename"`
	CVData     []byte `gorm:"type:blob" json:"-"`
	CVSize     int64  `json:"cv_size"`

	SubmittedAt time.Time         `gorm:"default:CURRENT_TIMESTAMP" json:"submitted_at"`
	Status      ApplicationStatus `gorm:"not null;default:'submitted'" json:"status"`

	PredictedClass      *string  `gorm:"type:text" json:"predicted_class,omitempty"`
	PredictedConfidence *float64 `gorm:"type:real" json:"predicted_confidence,omitempty"`
	ModelSlug           *string  `gorm:"type:text" json:"model_slug,omitempty"`
}

func (Application) TableName() string {
	return "applications"
}
