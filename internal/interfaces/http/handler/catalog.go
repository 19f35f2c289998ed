package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	catalogapp "github.com/printmarket/backend/internal/application/catalog"
	"github.com/printmarket/backend/internal/domain/identity"
	"github.com/printmarket/backend/internal/domain/shared"
)

// CatalogService manages uploaded model files
type CatalogService interface {
	RegisterProduct(ctx context.Context, actor identity.Actor, req catalogapp.RegisterProductRequest) (*catalogapp.UploadTicket, error)
	MarkUploaded(ctx context.Context, actor identity.Actor, id uuid.UUID) (*catalogapp.ProductResponse, error)
	Analyze(ctx context.Context, actor identity.Actor, id uuid.UUID) (*catalogapp.ProductResponse, error)
	Get(ctx context.Context, actor identity.Actor, id uuid.UUID) (*catalogapp.ProductResponse, error)
	ListMine(ctx context.Context, actor identity.Actor, filter shared.Filter) (shared.Paginated[catalogapp.ProductResponse], error)
}

// CatalogHandler handles product endpoints
type CatalogHandler struct {
	BaseHandler
	catalog CatalogService
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(catalog CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// Register godoc
// @Summary      Register a model file and get an upload URL
// @Tags         products
// @Accept       json
// @Produce      json
// @Param        request body catalogapp.RegisterProductRequest true "Product"
// @Success      201 {object} dto.Response{data=catalogapp.UploadTicket}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /products [post]
func (h *CatalogHandler) Register(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req catalogapp.RegisterProductRequest
	if !h.bindJSON(c, &req) {
		return
	}
	ticket, err := h.catalog.RegisterProduct(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, ticket)
}

// List godoc
// @Summary      List the caller's products
// @Tags         products
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Success      200 {object} dto.Response{data=[]catalogapp.ProductResponse,meta=dto.Meta}
// @Security     BearerAuth
// @Router       /products [get]
func (h *CatalogHandler) List(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var q PageQuery
	if !h.bindQuery(c, &q) {
		return
	}
	page, err := h.catalog.ListMine(c.Request.Context(), actor, q.Filter())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	respondPage(c, page)
}

// Get godoc
// @Summary      Get a product
// @Tags         products
// @Produce      json
// @Param        id path string true "Product ID"
// @Success      200 {object} dto.Response{data=catalogapp.ProductResponse}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /products/{id} [get]
func (h *CatalogHandler) Get(c *gin.Context) {
	h.byID(c, h.catalog.Get)
}

// MarkUploaded godoc
// @Summary      Confirm the model file was uploaded
// @Tags         products
// @Produce      json
// @Param        id path string true "Product ID"
// @Success      200 {object} dto.Response{data=catalogapp.ProductResponse}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /products/{id}/uploaded [post]
func (h *CatalogHandler) MarkUploaded(c *gin.Context) {
	h.byID(c, h.catalog.MarkUploaded)
}

// Analyze godoc
// @Summary      Run geometry analysis on an uploaded model
// @Tags         products
// @Produce      json
// @Param        id path string true "Product ID"
// @Success      200 {object} dto.Response{data=catalogapp.ProductResponse}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /products/{id}/analyze [post]
func (h *CatalogHandler) Analyze(c *gin.Context) {
	h.byID(c, h.catalog.Analyze)
}

func (h *CatalogHandler) byID(c *gin.Context, fn func(context.Context, identity.Actor, uuid.UUID) (*catalogapp.ProductResponse, error)) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	product, err := fn(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}
