package handler

import (
	"net/http"

	"dealer_portal_backend/internal/search/service"
	"dealer_portal_backend/internal/search/transport"
	"dealer_portal_backend/platform/httpkit"
	"dealer_portal_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts the dealer listing.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.ListDealers)
}

// RegisterDashboardRoutes mounts the "dealers by X" reports.
func (h *Handler) RegisterDashboardRoutes(rg *gin.RouterGroup) {
	rg.GET("/by-status/:status", h.DealersByStatus)
	rg.GET("/by-rating/:rating", h.DealersByRating)
	rg.GET("/by-buying-group/:buyingGroupId", h.DealersByBuyingGroup)
	rg.GET("/with-trade-shows", h.DealersWithTradeShows)
}

func (h *Handler) ListDealers(c *gin.Context) {
	req, tenantID, ok := h.bind(c)
	if !ok {
		return
	}

	result, err := h.svc.ListDealers(c.Request.Context(), tenantID, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

func (h *Handler) DealersByStatus(c *gin.Context) {
	status := c.Param("status")
	if err := h.val.Var(status, "required,oneof=active inactive prospect"); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Messages(err))
		return
	}
	req, tenantID, ok := h.bind(c)
	if !ok {
		return
	}

	result, err := h.svc.DealersByStatus(c.Request.Context(), tenantID, status, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

func (h *Handler) DealersByRating(c *gin.Context) {
	rating := c.Param("rating")
	if err := h.val.Var(rating, "required,oneof=A B C D"); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Messages(err))
		return
	}
	req, tenantID, ok := h.bind(c)
	if !ok {
		return
	}

	result, err := h.svc.DealersByRating(c.Request.Context(), tenantID, rating, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

func (h *Handler) DealersByBuyingGroup(c *gin.Context) {
	buyingGroupID, err := uuid.Parse(c.Param("buyingGroupId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, "invalid buying group id")
		return
	}
	req, tenantID, ok := h.bind(c)
	if !ok {
		return
	}

	result, err := h.svc.DealersByBuyingGroup(c.Request.Context(), tenantID, buyingGroupID, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

func (h *Handler) DealersWithTradeShows(c *gin.Context) {
	req, tenantID, ok := h.bind(c)
	if !ok {
		return
	}

	result, err := h.svc.DealersWithTradeShows(c.Request.Context(), tenantID, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// bind parses and validates the listing query and resolves the caller's tenant.
func (h *Handler) bind(c *gin.Context) (transport.DealerListRequest, uuid.UUID, bool) {
	var req transport.DealerListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return req, uuid.Nil, false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Messages(err))
		return req, uuid.Nil, false
	}

	tenantID, ok := httpkit.MustGetTenantID(c)
	if !ok {
		return req, uuid.Nil, false
	}
	return req, tenantID, true
}
