package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"docflow/internal/core/id"
	"docflow/internal/domain/billing"
	"docflow/internal/domain/documents"
	"docflow/internal/infrastructure/http/v1/dto"
)

// BillingService covers payments and deposit invoicing.
type BillingService interface {
	RecordPayment(ctx context.Context, invoiceID id.ID, in billing.PaymentInput) (*billing.PaymentResult, error)
	DeletePayment(ctx context.Context, invoiceID, paymentID id.ID) (*documents.Document, error)
	ListPayments(ctx context.Context, docID id.ID) ([]documents.Payment, error)
	CreateDepositInvoice(ctx context.Context, quoteID id.ID, in billing.DepositInput) (*billing.DepositResult, error)
	DepositSummary(ctx context.Context, quoteID id.ID) (*billing.DepositSummary, error)
	CreateFinalInvoice(ctx context.Context, sourceID id.ID, in billing.FinalInvoiceInput) (*billing.FinalInvoiceResult, error)
}

// BillingHandler serves the payment and deposit endpoints of /documents/:id.
type BillingHandler struct {
	*BaseHandler
	service BillingService
}

// NewBillingHandler creates a billing handler.
func NewBillingHandler(base *BaseHandler, service BillingService) *BillingHandler {
	return &BillingHandler{BaseHandler: base, service: service}
}

// ListPayments handles GET /documents/:id/payments.
func (h *BillingHandler) ListPayments(c *gin.Context) {
	docID, ok := h.ParseDocumentID(c)
	if !ok {
		return
	}
	payments, err := h.service.ListPayments(c.Request.Context(), docID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.FromPayments(payments))
}

// RecordPayment handles POST /documents/:id/payments.
func (h *BillingHandler) RecordPayment(c *gin.Context) {
	docID, ok := h.ParseDocumentID(c)
	if !ok {
		return
	}
	var req dto.PaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	res, err := h.service.RecordPayment(c.Request.Context(), docID, req.ToInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.FromPaymentResult(res))
}

// DeletePayment handles DELETE /documents/:id/payments/:paymentId.
func (h *BillingHandler) DeletePayment(c *gin.Context) {
	docID, ok := h.ParseDocumentID(c)
	if !ok {
		return
	}
	paymentID, ok := h.ParseID(c, "paymentId")
	if !ok {
		return
	}
	doc, err := h.service.DeletePayment(c.Request.Context(), docID, paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.FromDocument(doc))
}

// CreateDeposit handles POST /documents/:id/deposit-invoice.
func (h *BillingHandler) CreateDeposit(c *gin.Context) {
	quoteID, ok := h.ParseDocumentID(c)
	if !ok {
		return
	}
	var req dto.DepositRequest
	if !h.BindJSON(c, &req) {
		return
	}
	res, err := h.service.CreateDepositInvoice(c.Request.Context(), quoteID, req.ToInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.FromDeposit(res))
}

// DepositSummary handles GET /documents/:id/deposit-invoice.
func (h *BillingHandler) DepositSummary(c *gin.Context) {
	quoteID, ok := h.ParseDocumentID(c)
	if !ok {
		return
	}
	summary, err := h.service.DepositSummary(c.Request.Context(), quoteID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.FromDepositSummary(summary))
}

// CreateFinalInvoice handles POST /documents/:id/final-invoice.
func (h *BillingHandler) CreateFinalInvoice(c *gin.Context) {
	sourceID, ok := h.ParseDocumentID(c)
	if !ok {
		return
	}
	var req dto.FinalInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.HandleError(c, err)
		return
	}
	res, err := h.service.CreateFinalInvoice(c.Request.Context(), sourceID, in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.FromFinalInvoice(res))
}
