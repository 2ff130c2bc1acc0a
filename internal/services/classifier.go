package services

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/Yonsn76/cv-clasification-sub000/internal/ml"
	"github.com/Yonsn76/cv-clasification-sub000/internal/models"
	"github.com/Yonsn76/cv-clasification-sub000/internal/modelstore"
	"github.com/Yonsn76/cv-clasification-sub000/internal/repositories"
)

// ErrNoActiveModel is returned when classification is requested before a
// model has been selected.
var ErrNoActiveModel = errors.New("no model selected")

// ClassifierService holds the active model and classifies stored
// applications against it.
type ClassifierService interface {
	SelectModel(slug string) (*modelstore.Metadata, error)
	Current() (string, *modelstore.Metadata)
	Clear()
	ClearIf(slug string)
	ClassifyApplication(id uuid.UUID) (*models.ClassifyResponse, error)
}

type classifierService struct {
	store   *modelstore.Store
	appRepo repositories.ApplicationRepository
	parser  PDFParserService

	mu    sync.Mutex
	slug  string
	model ml.Model
	meta  *modelstore.Metadata
}

func NewClassifierService(
	store *modelstore.Store,
	appRepo repositories.ApplicationRepository,
	parser PDFParserService,
) ClassifierService {
	return &classifierService{
		store:   store,
		appRepo: appRepo,
		parser:  parser,
	}
}

// SelectModel implements ClassifierService. The package is fully loaded
// before it replaces the previous selection, so a corrupt package leaves the
// old model active.
func (c *classifierService) SelectModel(slug string) (*modelstore.Metadata, error) {
	model, meta, err := c.store.Load(slug)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.slug = slug
	c.model = model
	c.meta = meta
	c.mu.Unlock()

	log.Printf("✅ Model %s selected (%s, %d classes)\n", slug, meta.Variant, meta.ClassCount)
	return meta, nil
}

// Current implements ClassifierService.
func (c *classifierService) Current() (string, *modelstore.Metadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slug, c.meta
}

// Clear implements ClassifierService.
func (c *classifierService) Clear() {
	c.mu.Lock()
	c.slug, c.model, c.meta = "", nil, nil
	c.mu.Unlock()
}

// ClearIf drops the selection only when it matches the given slug. Callers
// deleting a package use it so removing a non-active model keeps the active
// one in place.
func (c *classifierService) ClearIf(slug string) {
	c.mu.Lock()
	if c.slug == slug {
		c.slug, c.model, c.meta = "", nil, nil
	}
	c.mu.Unlock()
}

// ClassifyApplication implements ClassifierService. The stored CV blob is
// written to a temp file for extraction, then class, confidence and model
// slug are persisted in one update.
func (c *classifierService) ClassifyApplication(id uuid.UUID) (*models.ClassifyResponse, error) {
	c.mu.Lock()
	slug, model := c.slug, c.model
	c.mu.Unlock()
	if model == nil {
		return nil, ErrNoActiveModel
	}

	filename, data, err := c.appRepo.GetCV(id)
	if err != nil {
		return nil, err
	}

	text, err := c.extractBlob(data)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text from %s: %w", filename, err)
	}

	prediction, err := model.PredictText(text)
	if err != nil {
		return nil, err
	}

	if err := c.appRepo.UpdateClassification(id, prediction.Class, prediction.Confidence, slug); err != nil {
		return nil, err
	}

	log.Printf("✅ Application %s classified as %q (%.2f, %s)\n",
		id, prediction.Class, prediction.Confidence, prediction.Level)

	return &models.ClassifyResponse{
		ApplicationID: id.String(),
		Model:         slug,
		Prediction:    prediction,
	}, nil
}

func (c *classifierService) extractBlob(data []byte) (string, error) {
	tmp, err := os.CreateTemp("", "cv-*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	return c.parser.ExtractText(path)
}
