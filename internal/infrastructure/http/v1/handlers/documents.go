package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"docflow/internal/core/id"
	"docflow/internal/domain/documents"
	"docflow/internal/infrastructure/http/v1/dto"
)

// DocumentService is the lifecycle surface served over HTTP.
// *documents.Service implements it.
type DocumentService interface {
	Create(ctx context.Context, in documents.CreateInput) (*documents.Document, error)
	Get(ctx context.Context, docID id.ID) (*documents.Detail, error)
	List(ctx context.Context, filter documents.ListFilter) (documents.ListResult, error)
	Update(ctx context.Context, docID id.ID, in documents.UpdateInput) (*documents.Document, error)
	ChangeStatus(ctx context.Context, docID id.ID, target documents.Status, reason string) (*documents.Document, error)
	Delete(ctx context.Context, docID id.ID) error
	Issue(ctx context.Context, docID id.ID) (*documents.IssueResult, error)
	Convert(ctx context.Context, sourceID id.ID, in documents.ConvertInput) (*documents.Document, error)
	VerifyIntegrity(ctx context.Context, docID id.ID) (*documents.IntegrityReport, error)
	PreviewNumber(ctx context.Context, t documents.Type) (string, error)
	Workflow(ctx context.Context, docID id.ID) (*documents.Workflow, error)
}

// DocumentHandler serves /documents.
type DocumentHandler struct {
	*BaseHandler
	service DocumentService
}

// NewDocumentHandler creates a document handler.
func NewDocumentHandler(base *BaseHandler, service DocumentService) *DocumentHandler {
	return &DocumentHandler{BaseHandler: base, service: service}
}

// Create handles POST /documents.
func (h *DocumentHandler) Create(c *gin.Context) {
	var req dto.CreateDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.HandleError(c, err)
		return
	}
	doc, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.FromDocument(doc))
}

// List handles GET /documents.
func (h *DocumentHandler) List(c *gin.Context) {
	var q dto.ListDocumentsQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.HandleError(c, err)
		return
	}
	res, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.DocumentListResponse{
		Documents:  dto.FromDocuments(res.Items),
		Pagination: dto.NewPagination(res),
	})
}

// Get handles GET /documents/:id.
func (h *DocumentHandler) Get(c *gin.Context) {
	docID, ok := h.ParseDocumentID(c)
	if !ok {
		return
	}
	detail, err := h.service.Get(c.Request.Context(), docID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.FromDetail(detail))
}

// Update handles PUT /documents/:id.
func (h *DocumentHandler) Update(c *gin.Context) {
	docID, ok := h.ParseDocumentID(c)
	if !ok {
		return
	}
	var req dto.UpdateDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.HandleError(c, err)
		return
	}
	doc, err := h.service.Update(c.Request.Context(), docID, in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.FromDocument(doc))
}

// Delete handles DELETE /documents/:id.
func (h *DocumentHandler) Delete(c *gin.Context) {
	docID, ok := h.ParseDocumentID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), docID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.NewIDResponse(docID))
}

// Issue handles POST /documents/:id/issue.
func (h *DocumentHandler) Issue(c *gin.Context) {
	docID, ok := h.ParseDocumentID(c)
	if !ok {
		return
	}
	res, err := h.service.Issue(c.Request.Context(), docID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.FromIssue(res))
}

// ChangeStatus handles PUT /documents/:id/status.
func (h *DocumentHandler) ChangeStatus(c *gin.Context) {
	docID, ok := h.ParseDocumentID(c)
	if !ok {
		return
	}
	var req dto.StatusRequest
	if !h.BindJSON(c, &req) {
		return
	}
	doc, err := h.service.ChangeStatus(c.Request.Context(), docID, documents.Status(req.Status), req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.FromDocument(doc))
}

// Convert handles POST /documents/:id/convert.
func (h *DocumentHandler) Convert(c *gin.Context) {
	sourceID, ok := h.ParseDocumentID(c)
	if !ok {
		return
	}
	var req dto.ConvertRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.HandleError(c, err)
		return
	}
	child, err := h.service.Convert(c.Request.Context(), sourceID, in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.FromDocument(child))
}

// NextNumber handles GET /documents/next-number?type=.
func (h *DocumentHandler) NextNumber(c *gin.Context) {
	var q dto.NextNumberQuery
	if !h.BindQuery(c, &q) {
		return
	}
	number, err := h.service.PreviewNumber(c.Request.Context(), documents.Type(q.Type))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.NextNumberResponse{Type: q.Type, Number: number})
}

// Integrity handles GET /documents/:id/integrity.
func (h *DocumentHandler) Integrity(c *gin.Context) {
	docID, ok := h.ParseDocumentID(c)
	if !ok {
		return
	}
	report, err := h.service.VerifyIntegrity(c.Request.Context(), docID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.FromIntegrity(report))
}

// Workflow handles GET /documents/:id/workflow.
func (h *DocumentHandler) Workflow(c *gin.Context) {
	docID, ok := h.ParseDocumentID(c)
	if !ok {
		return
	}
	wf, err := h.service.Workflow(c.Request.Context(), docID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, wf)
}
