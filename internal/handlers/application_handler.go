package handlers

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Yonsn76/cv-clasification-sub000/internal/ml"
	"github.com/Yonsn76/cv-clasification-sub000/internal/models"
	"github.com/Yonsn76/cv-clasification-sub000/internal/repositories"
	"github.com/Yonsn76/cv-clasification-sub000/internal/services"
)

type ApplicationHandler struct {
	appRepo     repositories.ApplicationRepository
	classifier  services.ClassifierService
	maxFileSize int64
}

func NewApplicationHandler(
	appRepo repositories.ApplicationRepository,
	classifier services.ClassifierService,
	maxFileSize int64,
) *ApplicationHandler {
	return &ApplicationHandler{
		appRepo:     appRepo,
		classifier:  classifier,
		maxFileSize: maxFileSize,
	}
}

// HandleCreate handles POST /applications
func (h *ApplicationHandler) HandleCreate(c *fiber.Ctx) error {
	name := strings.TrimSpace(c.FormValue("name"))
	email := strings.TrimSpace(c.FormValue("email"))
	nationalID := strings.TrimSpace(c.FormValue("national_id"))

	if name == "" || email == "" || nationalID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name, email and national_id are required",
		})
	}

	cvFile, err := c.FormFile("cv")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "cv file is required",
		})
	}
	if cvFile.Size > h.maxFileSize {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("CV file too large. Max size: %d bytes", h.maxFileSize),
		})
	}
	if !strings.HasSuffix(strings.ToLower(cvFile.Filename), ".pdf") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "cv must be a PDF file",
		})
	}

	src, err := cvFile.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to read CV file",
		})
	}
	data, err := io.ReadAll(src)
	src.Close()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to read CV file",
		})
	}

	app := &models.Application{
		ID:                uuid.New(),
		Name:              name,
		Email:             email,
		NationalID:        nationalID,
		Phone:             strings.TrimSpace(c.FormValue("phone")),
		ProfessionApplied: strings.TrimSpace(c.FormValue("profession_applied")),
		CVFilename:        cvFile.Filename,
		CVData:            data,
		CVSize:            cvFile.Size,
		SubmittedAt:       time.Now(),
		Status:            models.StatusSubmitted,
	}

	if err := h.appRepo.Create(app); err != nil {
		if errors.Is(err, repositories.ErrDuplicateApplicant) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "an application with this national_id and email already exists",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to store application",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(toApplicationResponse(app))
}

// HandleGet handles GET /applications/:id
func (h *ApplicationHandler) HandleGet(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid application id",
		})
	}

	app, err := h.appRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, repositories.ErrApplicationNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "application not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch application",
		})
	}

	return c.JSON(toApplicationResponse(app))
}

// HandleList handles GET /applications
func (h *ApplicationHandler) HandleList(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	apps, err := h.appRepo.List(limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list applications",
		})
	}

	responses := make([]models.ApplicationResponse, 0, len(apps))
	for i := range apps {
		responses = append(responses, toApplicationResponse(&apps[i]))
	}
	return c.JSON(fiber.Map{"applications": responses})
}

// HandleClassify handles POST /applications/:id/classify
func (h *ApplicationHandler) HandleClassify(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid application id",
		})
	}

	result, err := h.classifier.ClassifyApplication(id)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoActiveModel):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "no model selected; select a model first",
			})
		case errors.Is(err, repositories.ErrApplicationNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "application not found",
			})
		case errors.Is(err, ml.ErrEmptyInput):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "no text could be extracted from the CV",
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
	}

	return c.JSON(result)
}

func toApplicationResponse(app *models.Application) models.ApplicationResponse {
	return models.ApplicationResponse{
		ID:                  app.ID.String(),
		Name:                app.Name,
		Status:              string(app.Status),
		CVFilename:          app.CVFilename,
		PredictedClass:      app.PredictedClass,
		PredictedConfidence: app.PredictedConfidence,
		ModelSlug:           app.ModelSlug,
	}
}
