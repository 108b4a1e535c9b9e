package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"docflow/internal/core/id"
	"docflow/internal/domain"
	"docflow/internal/domain/catalogs/client"
	"docflow/internal/domain/catalogs/project"
	"docflow/internal/infrastructure/http/v1/dto"
)

// CatalogService is the subset of domain.CatalogService the handlers use.
type CatalogService[T any] interface {
	Create(ctx context.Context, entity T) error
	GetByID(ctx context.Context, entityID id.ID) (T, error)
	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[T], error)
}

// ClientHandler serves /clients.
type ClientHandler struct {
	*BaseHandler
	service CatalogService[*client.Client]
}

// NewClientHandler creates a client handler.
func NewClientHandler(base *BaseHandler, service CatalogService[*client.Client]) *ClientHandler {
	return &ClientHandler{BaseHandler: base, service: service}
}

// Create handles POST /clients.
func (h *ClientHandler) Create(c *gin.Context) {
	var req dto.CreateClientRequest
	if !h.BindJSON(c, &req) {
		return
	}
	entity := req.ToEntity()
	if err := h.service.Create(c.Request.Context(), entity); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.FromClient(entity))
}

// Get handles GET /clients/:id.
func (h *ClientHandler) Get(c *gin.Context) {
	clientID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	entity, err := h.service.GetByID(c.Request.Context(), clientID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.FromClient(entity))
}

// List handles GET /clients.
func (h *ClientHandler) List(c *gin.Context) {
	var q dto.ListCatalogQuery
	if !h.BindQuery(c, &q) {
		return
	}
	res, err := h.service.List(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	items := make([]dto.ClientResponse, 0, len(res.Items))
	for _, entity := range res.Items {
		items = append(items, dto.FromClient(entity))
	}
	h.OK(c, dto.CatalogListResponse[dto.ClientResponse]{Items: items, Pagination: dto.NewPagination(res)})
}

// ProjectHandler serves /projects.
type ProjectHandler struct {
	*BaseHandler
	service CatalogService[*project.Project]
}

// NewProjectHandler creates a project handler.
func NewProjectHandler(base *BaseHandler, service CatalogService[*project.Project]) *ProjectHandler {
	return &ProjectHandler{BaseHandler: base, service: service}
}

// Create handles POST /projects.
func (h *ProjectHandler) Create(c *gin.Context) {
	var req dto.CreateProjectRequest
	if !h.BindJSON(c, &req) {
		return
	}
	entity, err := req.ToEntity()
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if err := h.service.Create(c.Request.Context(), entity); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.FromProject(entity))
}

// Get handles GET /projects/:id.
func (h *ProjectHandler) Get(c *gin.Context) {
	projectID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	entity, err := h.service.GetByID(c.Request.Context(), projectID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.FromProject(entity))
}
