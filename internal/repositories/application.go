package repositories

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Yonsn76/cv-clasification-sub000/internal/models"
)

var (
	// ErrApplicationNotFound is returned for an unknown application id.
	ErrApplicationNotFound = errors.New("application not found")
	// ErrDuplicateApplicant is returned when (national_id, email) already
	// exists.
	ErrDuplicateApplicant = errors.New("applicant already registered")
)

type ApplicationRepository interface {
	Create(app *models.Application) error
	FindByID(id uuid.UUID) (*models.Application, error)
	List(limit int) ([]models.Application, error)
	GetCV(id uuid.UUID) (filename string, data []byte, err error)
	UpdateClassification(id uuid.UUID, class string, confidence float64, modelSlug string) error
}

type applicationRepository struct {
	db *gorm.DB
}

func NewApplicationRepository(db *gorm.DB) ApplicationRepository {
	return &applicationRepository{db: db}
}

// Create implements ApplicationRepository.
func (r *applicationRepository) Create(app *models.Application) error {
	if err := r.db.Create(app).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateApplicant
		}
		return fmt.Errorf("failed to create application: %w", err)
	}
	return nil
}

// FindByID implements ApplicationRepository.
func (r *applicationRepository) FindByID(id uuid.UUID) (*models.Application, error) {
	var app models.Application
	if err := r.db.Omit("cv_data").Where("id = ?", id).First(&app).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("failed to find application: %w", err)
	}
	return &app, nil
}

// List implements ApplicationRepository.
func (r *applicationRepository) List(limit int) ([]models.Application, error) {
	var apps []models.Application
	err := r.db.
		Omit("cv_data").
		Order("submitted_at DESC").
		Limit(limit).
		Find(&apps).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	return apps, nil
}

// GetCV implements ApplicationRepository.
func (r *applicationRepository) GetCV(id uuid.UUID) (string, []byte, error) {
	var app models.Application
	if err := r.db.Select("cv_filename", "cv_data").Where("id = ?", id).First(&app).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrApplicationNotFound
		}
		return "", nil, fmt.Errorf("failed to read CV: %w", err)
	}
	return app.CVFilename, app.CVData, nil
}

// UpdateClassification implements ApplicationRepository. The prediction
// triple is written in a single update so a record is never half-classified.
func (r *applicationRepository) UpdateClassification(id uuid.UUID, class string, confidence float64, modelSlug string) error {
	result := r.db.Model(&models.Application{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"predicted_class":      class,
			"predicted_confidence": confidence,
			"model_slug":           modelSlug,
			"status":               models.StatusClassified,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update classification: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrApplicationNotFound
	}
	return nil
}
