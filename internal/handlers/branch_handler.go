package handlers

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/wisercms/wiser-api/pkg/branches"
	"github.com/wisercms/wiser-api/pkg/models"
)

// BranchHandler exposes the branch lifecycle over HTTP.
type BranchHandler struct {
	service  *branches.Service
	validate *validator.Validate
	logger   ectologger.Logger
}

func NewBranchHandler(service *branches.Service, logger ectologger.Logger) *BranchHandler {
	return &BranchHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

// RegisterRoutes registers the branch endpoints
func (h *BranchHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/branches", h.Create)
	g.GET("/branches", h.List)
	g.GET("/branches/:id/changes", h.Changes)
	g.POST("/branches/:id/merge", h.Merge)
}

// Create clones the caller's production environment into a new branch.
func (h *BranchHandler) Create(c echo.Context) error {
	var settings models.CreateBranchSettings
	if err := c.Bind(&settings); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(&settings); err != nil {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid branch settings: %v", err)
	}

	branch, err := h.service.CreateBranch(c.Request().Context(), settings)
	if err != nil {
		return err
	}
	return CreatedResponse(c, branch)
}

// List returns the caller's branches.
func (h *BranchHandler) List(c echo.Context) error {
	list, err := h.service.ListBranches(c.Request().Context())
	if err != nil {
		return err
	}
	return SuccessResponse(c, list)
}

// Changes returns the impact summary of a branch's pending change log.
func (h *BranchHandler) Changes(c echo.Context) error {
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	changes, err := h.service.GetChanges(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return SuccessResponse(c, changes)
}

// Merge replays the branch's change log into production. Partial failure is a
// 200: the result lists the per-record errors alongside the success count.
func (h *BranchHandler) Merge(c echo.Context) error {
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	result, err := h.service.Merge(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return SuccessResponse(c, result)
}
