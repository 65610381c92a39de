package screening

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/parcelwatch/fraud-screening/internal/address"
	"github.com/parcelwatch/fraud-screening/pkg/common"
	"github.com/parcelwatch/fraud-screening/pkg/middleware"
	"github.com/parcelwatch/fraud-screening/pkg/pagination"
	"github.com/parcelwatch/fraud-screening/pkg/security"
)

// Handler handles screening HTTP requests
type Handler struct {
	engine *Engine
	repo   *Repository
}

// NewHandler creates a new screening handler
func NewHandler(engine *Engine, repo *Repository) *Handler {
	return &Handler{engine: engine, repo: repo}
}

// CheckReturn evaluates a return shipment for fraud signals
func (h *Handler) CheckReturn(c *gin.Context) {
	var req ReturnCheckRequest
	if !middleware.ValidateAndBind(c, &req) {
		return
	}
	sanitizeReturnCheckRequest(&req)

	eval, err := h.engine.CheckReturn(c.Request.Context(), &req)
	if err != nil {
		respondCheckError(c, err, "failed to evaluate return")
		return
	}

	common.SuccessResponse(c, eval)
}

// CheckOrder evaluates a new order for duplicate-address abuse
func (h *Handler) CheckOrder(c *gin.Context) {
	var req OrderCheckRequest
	if !middleware.ValidateAndBind(c, &req) {
		return
	}
	req.OrderID = security.SanitizeString(req.OrderID)
	req.Street = security.SanitizeString(req.Street)
	req.Zip = security.SanitizeString(req.Zip)

	eval, err := h.engine.CheckOrder(c.Request.Context(), &req)
	if err != nil {
		respondCheckError(c, err, "failed to evaluate order")
		return
	}

	common.SuccessResponse(c, eval)
}

// ListEvaluations returns past return evaluations, newest first
func (h *Handler) ListEvaluations(c *gin.Context) {
	params := pagination.ParseParams(c)

	var flagged *bool
	if raw := c.Query("flagged"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			common.ErrorResponse(c, http.StatusBadRequest, "flagged must be true or false")
			return
		}
		flagged = &v
	}

	evaluations, total, err := h.repo.ListEvaluationsWithTotal(c.Request.Context(), flagged, params.Limit, params.Offset)
	if err != nil {
		if appErr, ok := err.(*common.AppError); ok {
			common.AppErrorResponse(c, appErr)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to list evaluations")
		return
	}

	common.SuccessResponseWithMeta(c, evaluations, pagination.BuildMeta(params.Limit, params.Offset, total))
}

// GetEvaluation returns a single return evaluation
func (h *Handler) GetEvaluation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid evaluation ID")
		return
	}

	rec, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.ErrorResponse(c, http.StatusNotFound, "evaluation not found")
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to get evaluation")
		return
	}

	common.SuccessResponse(c, rec)
}

// DropOffHotspots returns the H3 cells with the most fraudulent drop-offs
func (h *Handler) DropOffHotspots(c *gin.Context) {
	params := pagination.ParseParams(c)

	hotspots, err := h.repo.DropOffHotspots(c.Request.Context(), params.Limit)
	if err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to get drop-off hotspots")
		return
	}

	common.SuccessResponse(c, hotspots)
}

// RegisterRoutes registers screening routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1/screening")
	{
		api.POST("/returns/check", h.CheckReturn)
		api.POST("/orders/check", h.CheckOrder)
		api.GET("/evaluations", h.ListEvaluations)
		api.GET("/evaluations/:id", h.GetEvaluation)
		api.GET("/stats/drop-off-hotspots", h.DropOffHotspots)
	}
}

// respondCheckError maps engine errors to HTTP responses.
func respondCheckError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrUpstreamUnavailable):
		common.ErrorResponse(c, http.StatusInternalServerError, "Error fetching tracking info from carrier")
	case errors.Is(err, ErrTrackingNotFound):
		common.ErrorResponse(c, http.StatusNotFound, "Tracking details not found")
	case errors.Is(err, ErrIncompleteLocation):
		common.ErrorResponse(c, http.StatusBadRequest, "Incomplete drop-off location info")
	case errors.Is(err, ErrGeocodeFailure):
		common.ErrorResponse(c, http.StatusBadRequest, "Geocoding failed")
	case errors.Is(err, ErrMissingWeight):
		common.ErrorResponse(c, http.StatusBadRequest, "Return package weight not found")
	case errors.Is(err, address.ErrInvalidFormat):
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid address format")
	default:
		if appErr, ok := err.(*common.AppError); ok {
			common.AppErrorResponse(c, appErr)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, fallback)
	}
}

func sanitizeReturnCheckRequest(req *ReturnCheckRequest) {
	req.OrderID = security.SanitizeString(req.OrderID)
	req.ShippingAddress.City = security.SanitizeString(req.ShippingAddress.City)
	req.ShippingAddress.Zip = security.SanitizeString(req.ShippingAddress.Zip)
	req.TrackingNumber = security.SanitizeString(req.TrackingNumber)
	req.Carrier = security.SanitizeString(req.Carrier)
}
