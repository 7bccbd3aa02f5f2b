package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-intakedb/internal/services"
	"github.com/localnerve/jam-build-intakedb/internal/utils"
)

// CatalogHandler handles taxonomy and catalog field routes
type CatalogHandler struct {
	Catalog *services.CatalogService
}

// ListCategories handles GET /api/categories
// @Summary List categories
// @Description List the field taxonomy with subcategories, ordered by order then name
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Category
// @Failure 401 {object} utils.ErrorResponseStruct
// @Router /categories [get]
func (h *CatalogHandler) ListCategories(c *fiber.Ctx) error {
	cats, err := h.Catalog.ListCategories(c.UserContext())
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, cats, fiber.StatusOK)
}

// CreateCategory handles POST /api/categories
// @Summary Create category
// @Tags Catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CategoryInput true "Category"
// @Success 201 {object} models.Category
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /categories [post]
func (h *CatalogHandler) CreateCategory(c *fiber.Ctx) error {
	var in services.CategoryInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	cat, err := h.Catalog.CreateCategory(c.UserContext(), in)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, cat, fiber.StatusCreated)
}

// UpdateCategory handles PUT /api/categories/:id
// @Summary Update category
// @Tags Catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Category ID"
// @Param body body services.CategoryInput true "Changes"
// @Success 200 {object} models.Category
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /categories/{id} [put]
func (h *CatalogHandler) UpdateCategory(c *fiber.Ctx) error {
	var in services.CategoryInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	cat, err := h.Catalog.UpdateCategory(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, cat, fiber.StatusOK)
}

// DeleteCategory handles DELETE /api/categories/:id
// @Summary Delete category
// @Description Fields in the category are detached. Subcategories block the delete unless cascade=true.
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Param id path string true "Category ID"
// @Param cascade query bool false "Also delete subcategories"
// @Success 200 {object} utils.DeletedResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /categories/{id} [delete]
func (h *CatalogHandler) DeleteCategory(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.Catalog.DeleteCategory(c.UserContext(), id, queryBool(c, "cascade")); err != nil {
		return err
	}
	return utils.DeletedResponse(c, id)
}

// CreateSubcategory handles POST /api/categories/:id/subcategories
// @Summary Create subcategory
// @Tags Catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Category ID"
// @Param body body services.CategoryInput true "Subcategory"
// @Success 201 {object} models.Subcategory
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /categories/{id}/subcategories [post]
func (h *CatalogHandler) CreateSubcategory(c *fiber.Ctx) error {
	var in services.CategoryInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	sub, err := h.Catalog.CreateSubcategory(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, sub, fiber.StatusCreated)
}

// DeleteSubcategory handles DELETE /api/subcategories/:id
// @Summary Delete subcategory
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Param id path string true "Subcategory ID"
// @Success 200 {object} utils.DeletedResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /subcategories/{id} [delete]
func (h *CatalogHandler) DeleteSubcategory(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.Catalog.DeleteSubcategory(c.UserContext(), id); err != nil {
		return err
	}
	return utils.DeletedResponse(c, id)
}

// SearchFields handles GET /api/fields
// @Summary Search catalog fields
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Param search query string false "Free text over name and label"
// @Param categoryId query string false "Category filter"
// @Param subcategoryId query string false "Subcategory filter"
// @Param sort query string false "order, name, label, createdAt or updatedAt; prefix - for descending"
// @Success 200 {array} models.Field
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /fields [get]
func (h *CatalogHandler) SearchFields(c *fiber.Ctx) error {
	fields, err := h.Catalog.SearchFields(c.UserContext(), services.FieldQuery{
		Search:        c.Query("search"),
		CategoryID:    c.Query("categoryId"),
		SubcategoryID: c.Query("subcategoryId"),
		Sort:          c.Query("sort"),
	})
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fields, fiber.StatusOK)
}

// GetField handles GET /api/fields/:id
// @Summary Get catalog field
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Param id path string true "Field ID"
// @Success 200 {object} models.Field
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /fields/{id} [get]
func (h *CatalogHandler) GetField(c *fiber.Ctx) error {
	f, err := h.Catalog.GetField(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, f, fiber.StatusOK)
}

// CreateField handles POST /api/fields
// @Summary Create catalog field
// @Tags Catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.FieldInput true "Field"
// @Success 201 {object} models.Field
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /fields [post]
func (h *CatalogHandler) CreateField(c *fiber.Ctx) error {
	var in services.FieldInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	f, err := h.Catalog.CreateField(c.UserContext(), in)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, f, fiber.StatusCreated)
}

// UpdateField handles PUT /api/fields/:id
// @Summary Update catalog field
// @Description Forms keep the snapshot taken when the field was composed into them.
// @Tags Catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Field ID"
// @Param body body services.FieldInput true "Changes"
// @Success 200 {object} models.Field
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /fields/{id} [put]
func (h *CatalogHandler) UpdateField(c *fiber.Ctx) error {
	var in services.FieldInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	f, err := h.Catalog.UpdateField(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, f, fiber.StatusOK)
}

// DeleteField handles DELETE /api/fields/:id
// @Summary Delete catalog field
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Param id path string true "Field ID"
// @Success 200 {object} utils.DeletedResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /fields/{id} [delete]
func (h *CatalogHandler) DeleteField(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.Catalog.DeleteField(c.UserContext(), id); err != nil {
		return err
	}
	return utils.DeletedResponse(c, id)
}
