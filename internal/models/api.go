package models

import "github.com/Yonsn76/cv-clasification-sub000/internal/ml"

type ApplicationResponse struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Status              string   `json:"status"`
	CVFilename          string   `json:"cv_filename"`
	PredictedClass      *string  `json:"predicted_class,omitempty"`
	PredictedConfidence *float64 `json:"predicted_confidence,omitempty"`
	ModelSlug           *string  `json:"model_slug,omitempty"`
}

type TrainRequest struct {
	Name        string            `json:"name" validate:"required"`
	DisplayName string            `json:"display_name"`
	Variant     string            `json:"variant" validate:"required"`
	Sources     map[string]string `json:"sources" validate:"required"`

	Hyperparams  map[string]any `json:"hyperparameters,omitempty"`
	Epochs       int            `json:"epochs,omitempty"`
	BatchSize    int            `json:"batch_size,omitempty"`
	TestFraction float64        `json:"test_fraction,omitempty"`
	Overwrite    bool           `json:"overwrite,omitempty"`
}

type TrainResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type ClassifyResponse struct {
	ApplicationID string         `json:"application_id"`
	Model         string         `json:"model"`
	Prediction    *ml.Prediction `json:"prediction"`
}

type ImportRequest struct {
	Slug      string `json:"slug"`
	Overwrite bool   `json:"overwrite"`
}
