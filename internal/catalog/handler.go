package catalog

import (
	"net/http"

	"github.com/eleven-am/civic311/internal/dto"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	catalog *Catalog
}

func NewHandler(catalog *Catalog) *Handler {
	return &Handler{catalog: catalog}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/categories", h.List)
}

// List godoc
// @Summary      List issue categories
// @Description  Returns the civic issue categories a report can be filed under
// @Tags         catalog
// @Produce      json
// @Success      200  {object}  dto.CategoryListResponse
// @Router       /categories [get]
func (h *Handler) List(c echo.Context) error {
	cats := h.catalog.List()
	resp := dto.CategoryListResponse{Categories: make([]dto.CategoryResponse, 0, len(cats))}
	for _, cat := range cats {
		resp.Categories = append(resp.Categories, dto.CategoryResponse{
			Key:      cat.Key,
			Label:    cat.Label,
			Question: cat.Question,
		})
	}
	return c.JSON(http.StatusOK, resp)
}
