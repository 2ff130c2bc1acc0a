package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Yonsn76/cv-clasification-sub000/internal/modelstore"
	"github.com/Yonsn76/cv-clasification-sub000/internal/services"
)

type ModelHandler struct {
	store      *modelstore.Store
	classifier services.ClassifierService
	cacheDir   string
}

func NewModelHandler(store *modelstore.Store, classifier services.ClassifierService, cacheDir string) *ModelHandler {
	return &ModelHandler{
		store:      store,
		classifier: classifier,
		cacheDir:   cacheDir,
	}
}

// HandleList handles GET /models
func (h *ModelHandler) HandleList(c *fiber.Ctx) error {
	metas := h.store.List()
	activeSlug, _ := h.classifier.Current()
	return c.JSON(fiber.Map{
		"models":       metas,
		"active_model": activeSlug,
	})
}

// HandleGet handles GET /models/:slug
func (h *ModelHandler) HandleGet(c *fiber.Ctx) error {
	meta, err := h.store.GetMetadata(c.Params("slug"))
	if err != nil {
		return modelStoreError(c, err)
	}
	return c.JSON(meta)
}

// HandleDelete handles DELETE /models/:slug
func (h *ModelHandler) HandleDelete(c *fiber.Ctx) error {
	slug := c.Params("slug")
	removed, err := h.store.Delete(slug)
	if err != nil {
		return modelStoreError(c, err)
	}
	if removed {
		h.classifier.ClearIf(slug)
	}
	return c.JSON(fiber.Map{"deleted": removed})
}

// HandleExport handles GET /models/:slug/export
func (h *ModelHandler) HandleExport(c *fiber.Ctx) error {
	slug := c.Params("slug")

	var buf bytes.Buffer
	if err := h.store.Export(slug, &buf); err != nil {
		return modelStoreError(c, err)
	}

	filename := slug + modelstore.ArchiveExtension
	c.Set(fiber.HeaderContentType, "application/zip")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(buf.Bytes())
}

// HandleImport handles POST /models/import. The archive arrives as a
// multipart "package" file; "slug" renames the package and "overwrite"
// replaces an existing one.
func (h *ModelHandler) HandleImport(c *fiber.Ctx) error {
	file, err := c.FormFile("package")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "package file is required",
		})
	}
	if !strings.HasSuffix(strings.ToLower(file.Filename), modelstore.ArchiveExtension) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("package must be a %s archive", modelstore.ArchiveExtension),
		})
	}

	slug := strings.TrimSpace(c.FormValue("slug"))
	if slug == "" {
		slug = strings.TrimSuffix(file.Filename, filepath.Ext(file.Filename))
	}
	slug, err = services.Slugify(slug)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	overwrite := c.FormValue("overwrite") == "true"

	if err := os.MkdirAll(h.cacheDir, 0o755); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to stage archive",
		})
	}
	staged := filepath.Join(h.cacheDir, fmt.Sprintf("import-%s%s", slug, modelstore.ArchiveExtension))
	if err := c.SaveFile(file, staged); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to stage archive",
		})
	}
	defer os.Remove(staged)

	meta, err := h.store.Import(staged, slug, overwrite)
	if err != nil {
		if errors.Is(err, modelstore.ErrConflict) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":    fmt.Sprintf("model %s already exists; set overwrite=true to replace it", slug),
				"existing": meta,
			})
		}
		if errors.Is(err, modelstore.ErrBadArchive) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to import model package",
		})
	}

	if overwrite {
		// A replaced package may be stale in the classifier cache.
		h.classifier.ClearIf(slug)
	}

	return c.Status(fiber.StatusCreated).JSON(meta)
}

// HandleSelect handles POST /models/:slug/select
func (h *ModelHandler) HandleSelect(c *fiber.Ctx) error {
	meta, err := h.classifier.SelectModel(c.Params("slug"))
	if err != nil {
		return modelStoreError(c, err)
	}
	return c.JSON(fiber.Map{
		"active_model": meta.Name,
		"metadata":     meta,
	})
}

// HandleCurrent handles GET /models/current
func (h *ModelHandler) HandleCurrent(c *fiber.Ctx) error {
	slug, meta := h.classifier.Current()
	if slug == "" {
		return c.JSON(fiber.Map{"active_model": nil})
	}
	return c.JSON(fiber.Map{
		"active_model": slug,
		"metadata":     meta,
	})
}

func modelStoreError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, modelstore.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "model not found",
		})
	case errors.Is(err, modelstore.ErrBadSlug):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, modelstore.ErrCorrupt):
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "model package is corrupt",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}
