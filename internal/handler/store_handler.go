package handler

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/storefront/internal/artifact"
	"github.com/suteetoe/storefront/internal/assets"
	"github.com/suteetoe/storefront/internal/events"
	"github.com/suteetoe/storefront/internal/provisioning"
	"github.com/suteetoe/storefront/pkg/jwtutil"
	"github.com/suteetoe/storefront/pkg/logger"
	"go.uber.org/zap"
)

// StoreHandler serves the store provisioning endpoints.
type StoreHandler struct {
	pipeline  *provisioning.Pipeline
	repo      *provisioning.Repository
	generator provisioning.Generator
	publisher events.Publisher
	layout    assets.Layout
	jwt       *jwtutil.JWTUtil
}

// NewStoreHandler creates the handler. publisher may be nil.
func NewStoreHandler(
	pipeline *provisioning.Pipeline,
	repo *provisioning.Repository,
	generator provisioning.Generator,
	publisher events.Publisher,
	layout assets.Layout,
	jwt *jwtutil.JWTUtil,
) *StoreHandler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &StoreHandler{
		pipeline:  pipeline,
		repo:      repo,
		generator: generator,
		publisher: publisher,
		layout:    layout,
		jwt:       jwt,
	}
}

// CreateWithImages provisions a store from a multipart form
func (h *StoreHandler) CreateWithImages(c echo.Context) error {
	log := logger.FromEcho(c)

	form, err := c.MultipartForm()
	if err != nil {
		log.Warn("Failed to parse multipart form", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid multipart form", "stage": provisioning.StageValidate})
	}

	req, err := provisioning.ParseRequest(form.Value, h.pipeline.Defaults())
	if err != nil {
		return respondError(c, err, nil)
	}

	log.Info("Store provisioning requested",
		zap.String("store_slug", req.Slug),
		zap.Int("products", len(req.Products)),
		zap.Int("file_fields", len(form.File)))

	res, err := h.pipeline.Provision(c.Request().Context(), req, form.File)
	if err != nil {
		return respondError(c, err, res)
	}

	merchant := echo.Map{
		"id":        res.Merchant.ID,
		"email":     res.Merchant.Email,
		"firstName": res.Merchant.FirstName,
		"lastName":  res.Merchant.LastName,
		"role":      res.Merchant.Role,
		"storeSlug": req.Slug,
	}
	if h.jwt != nil {
		token, err := h.jwt.GenerateToken(res.Merchant.Email, res.Merchant.ID, res.Merchant.Role, req.Slug)
		if err != nil {
			log.Warn("Failed to issue merchant token", zap.Error(err))
		} else {
			merchant["token"] = token
		}
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"message": "Store created successfully",
		"store": echo.Map{
			"id":          res.Store.ID,
			"storeId":     req.StoreID,
			"slug":        res.Store.Slug,
			"name":        res.Store.Name,
			"nameEn":      req.NameEn,
			"description": res.Store.Description,
			"category":    res.Store.Category,
			"categories":  req.Categories,
			"logo":        res.Store.Logo,
			"banner":      res.Store.Banner,
			"icon":        req.Icon,
			"color":       req.Color,
			"isActive":    res.Store.IsActive,
		},
		"products":     res.Products,
		"sliderImages": res.Sliders,
		"verification": res.Verification,
		"dedup":        res.Dedup,
		"merchant":     merchant,
		"state":        res.State,
		"warnings":     res.Warnings,
	})
}

// Validate runs request validation without side effects
func (h *StoreHandler) Validate(c echo.Context) error {
	values, err := c.FormParams()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid form", "stage": provisioning.StageValidate})
	}
	req, err := provisioning.ParseRequest(values, h.pipeline.Defaults())
	if err != nil {
		return respondError(c, err, nil)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"valid":     true,
		"storeSlug": req.Slug,
		"category":  req.Category,
		"products":  len(req.Products),
		"sliders":   len(req.Sliders),
	})
}

type checkExistsRequest struct {
	StoreSlug string `json:"storeSlug" form:"storeSlug"`
	StoreName string `json:"storeName" form:"storeName"`
}

// CheckExists reports whether a slug or name is already in use
func (h *StoreHandler) CheckExists(c echo.Context) error {
	log := logger.FromEcho(c)

	var req checkExistsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	req.StoreSlug = strings.TrimSpace(req.StoreSlug)
	req.StoreName = strings.TrimSpace(req.StoreName)
	if !provisioning.ValidSlug(req.StoreSlug) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "a valid storeSlug is required"})
	}

	err := h.repo.CheckAvailability(c.Request().Context(), req.StoreSlug, req.StoreName, nil)
	switch {
	case provisioning.IsKind(err, provisioning.KindConflict):
		pe, _ := provisioning.AsError(err)
		return c.JSON(http.StatusOK, echo.Map{"exists": true, "source": "database", "message": pe.Message})
	case err != nil:
		log.Error("Failed to check store availability", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "availability check failed"})
	}

	if _, err := os.Stat(h.layout.ManifestPath(req.StoreSlug)); err == nil {
		return c.JSON(http.StatusOK, echo.Map{"exists": true, "source": "manifest"})
	}
	if _, err := os.Stat(h.layout.StoreDir(req.StoreSlug)); err == nil {
		return c.JSON(http.StatusOK, echo.Map{"exists": true, "source": "assets"})
	}
	return c.JSON(http.StatusOK, echo.Map{"exists": false})
}

// Public returns the storefront payload of one store
func (h *StoreHandler) Public(c echo.Context) error {
	log := logger.FromEcho(c)
	slug := c.Param("slug")
	if !provisioning.ValidSlug(slug) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "store not found"})
	}

	manifest, err := artifact.ReadManifest(h.layout, slug)
	if err == nil {
		return c.JSON(http.StatusOK, echo.Map{"source": "manifest", "store": manifest})
	}
	if !errors.Is(err, os.ErrNotExist) {
		log.Warn("Unreadable store manifest", zap.String("store_slug", slug), zap.Error(err))
	}

	store, err := h.repo.FindBySlug(c.Request().Context(), slug)
	if errors.Is(err, provisioning.ErrStoreNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "store not found"})
	}
	if err != nil {
		log.Error("Failed to load store", zap.String("store_slug", slug), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load store"})
	}
	return c.JSON(http.StatusOK, echo.Map{"source": "database", "store": store})
}

// List returns a page of stores
func (h *StoreHandler) List(c echo.Context) error {
	log := logger.FromEcho(c)

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	stores, total, err := h.repo.List(c.Request().Context(), page, limit)
	if err != nil {
		log.Error("Failed to list stores", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list stores"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"stores": stores,
		"total":  total,
		"page":   page,
		"limit":  limit,
	})
}

type cleanupRequest struct {
	StoreSlug string `json:"storeSlug" form:"storeSlug"`
}

// Cleanup deletes a store, its merchant, its assets and its artifacts
func (h *StoreHandler) Cleanup(c echo.Context) error {
	log := logger.FromEcho(c)
	ctx := c.Request().Context()

	var req cleanupRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.StoreSlug) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "storeSlug is required"})
	}
	slug := strings.TrimSpace(req.StoreSlug)
	if !provisioning.ValidSlug(slug) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid storeSlug"})
	}
	storeDir := h.layout.StoreDir(slug)

	store, dbErr := h.repo.DeleteBySlug(ctx, slug)
	if dbErr != nil && !errors.Is(dbErr, provisioning.ErrStoreNotFound) {
		log.Error("Failed to delete store rows", zap.String("store_slug", slug), zap.Error(dbErr))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete store"})
	}
	_, statErr := os.Stat(storeDir)
	if errors.Is(dbErr, provisioning.ErrStoreNotFound) && errors.Is(statErr, os.ErrNotExist) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "store not found"})
	}

	var warnings []string
	if err := h.generator.Remove(ctx, slug); err != nil {
		log.Warn("Failed to remove store artifacts", zap.String("store_slug", slug), zap.Error(err))
		warnings = append(warnings, "artifacts: "+err.Error())
	}
	if err := os.RemoveAll(storeDir); err != nil {
		log.Warn("Failed to remove store assets", zap.String("store_slug", slug), zap.Error(err))
		warnings = append(warnings, "assets: "+err.Error())
	}

	event := events.StoreEvent{Type: events.TypeStoreDeleted, Slug: slug}
	if store != nil {
		event.StoreID = store.ID
		event.Name = store.Name
		event.MerchantID = store.MerchantID
	}
	if err := h.publisher.Publish(ctx, event); err != nil {
		log.Warn("Failed to publish store event", zap.Error(err))
	}

	log.Info("Store cleaned up", zap.String("store_slug", slug), zap.Bool("had_rows", store != nil))
	return c.JSON(http.StatusOK, echo.Map{
		"success":  true,
		"slug":     slug,
		"warnings": warnings,
	})
}

// respondError maps pipeline failures onto HTTP responses.
func respondError(c echo.Context, err error, res *provisioning.Result) error {
	pe, ok := provisioning.AsError(err)
	if !ok {
		logger.FromEcho(c).Error("Unexpected provisioning error", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	body := echo.Map{
		"error": pe.Message,
		"stage": pe.Stage,
		"kind":  pe.Kind,
	}
	if res != nil {
		body["state"] = res.State
		if res.Verification != nil {
			body["verification"] = res.Verification
		}
	}
	return c.JSON(pe.HTTPStatus(), body)
}
