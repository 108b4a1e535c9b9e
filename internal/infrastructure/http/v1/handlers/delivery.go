package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"docflow/internal/core/id"
	"docflow/internal/domain/delivery"
	"docflow/internal/infrastructure/http/v1/dto"
)

// DeliveryService records partial deliveries against purchase orders.
type DeliveryService interface {
	CreateDelivery(ctx context.Context, orderID id.ID, req delivery.Request) (*delivery.Result, error)
	Status(ctx context.Context, orderID id.ID) (*delivery.StatusReport, error)
}

// DeliveryHandler serves /documents/:id/partial-delivery.
type DeliveryHandler struct {
	*BaseHandler
	service DeliveryService
}

// NewDeliveryHandler creates a delivery handler.
func NewDeliveryHandler(base *BaseHandler, service DeliveryService) *DeliveryHandler {
	return &DeliveryHandler{BaseHandler: base, service: service}
}

// Create handles POST /documents/:id/partial-delivery.
func (h *DeliveryHandler) Create(c *gin.Context) {
	orderID, ok := h.ParseDocumentID(c)
	if !ok {
		return
	}
	var body dto.DeliveryRequest
	if !h.BindJSON(c, &body) {
		return
	}
	req, err := body.ToRequest()
	if err != nil {
		h.HandleError(c, err)
		return
	}
	res, err := h.service.CreateDelivery(c.Request.Context(), orderID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.FromDelivery(res))
}

// Status handles GET /documents/:id/partial-delivery.
func (h *DeliveryHandler) Status(c *gin.Context) {
	orderID, ok := h.ParseDocumentID(c)
	if !ok {
		return
	}
	report, err := h.service.Status(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.FromDeliveryStatus(report))
}
