package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Yonsn76/cv-clasification-sub000/internal/ml"
	"github.com/Yonsn76/cv-clasification-sub000/internal/models"
	"github.com/Yonsn76/cv-clasification-sub000/internal/services"
)

type TrainHandler struct {
	trainer services.TrainerService
}

func NewTrainHandler(trainer services.TrainerService) *TrainHandler {
	return &TrainHandler{trainer: trainer}
}

// HandleTrain handles POST /train
func (h *TrainHandler) HandleTrain(c *fiber.Ctx) error {
	var req models.TrainRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request payload",
		})
	}

	jobID, err := h.trainer.Enqueue(req, nil)
	if err != nil {
		switch {
		case errors.Is(err, ml.ErrUnknownVariant):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "unknown variant: " + req.Variant,
			})
		case errors.Is(err, services.ErrInvalidName), errors.Is(err, services.ErrNoSources):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		case errors.Is(err, services.ErrModelExists):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": err.Error(),
			})
		case errors.Is(err, services.ErrQueueFull):
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "training queue is full, try again later",
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to enqueue training job",
			})
		}
	}

	return c.Status(fiber.StatusAccepted).JSON(models.TrainResponse{
		JobID:  jobID.String(),
		Status: string(services.JobQueued),
	})
}

// HandleJobStatus handles GET /train/:id
func (h *TrainHandler) HandleJobStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid job id",
		})
	}

	job, err := h.trainer.Job(id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "training job not found",
		})
	}

	return c.JSON(job)
}

// HandleCancel handles POST /train/:id/cancel
func (h *TrainHandler) HandleCancel(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid job id",
		})
	}

	if err := h.trainer.Cancel(id); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "training job not found",
		})
	}

	return c.JSON(fiber.Map{"status": "cancelling"})
}
