package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-intakedb/internal/middleware"
	"github.com/localnerve/jam-build-intakedb/internal/services"
	"github.com/localnerve/jam-build-intakedb/internal/utils"
)

// FormHandler handles form composition and publication routes
type FormHandler struct {
	Forms *services.FormService
}

// ListForms handles GET /api/forms
// @Summary List forms
// @Description Admins see one assigned university at a time; superadmins see all.
// @Tags Forms
// @Produce json
// @Security BearerAuth
// @Param universityId query string false "University filter"
// @Param status query string false "draft, published or archived"
// @Param courseId query string false "Course filter"
// @Success 200 {array} models.Form
// @Failure 403 {object} utils.ErrorResponseStruct
// @Router /forms [get]
func (h *FormHandler) ListForms(c *fiber.Ctx) error {
	forms, err := h.Forms.ListForms(c.UserContext(), middleware.ActorFrom(c), services.FormQuery{
		UniversityID: c.Query("universityId"),
		Status:       c.Query("status"),
		CourseID:     c.Query("courseId"),
	})
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, forms, fiber.StatusOK)
}

// GetForm handles GET /api/forms/:id
// @Summary Get form
// @Description Learners can only read published forms, without invisible fields.
// @Tags Forms
// @Produce json
// @Security BearerAuth
// @Param id path string true "Form ID"
// @Success 200 {object} models.Form
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /forms/{id} [get]
func (h *FormHandler) GetForm(c *fiber.Ctx) error {
	form, err := h.Forms.GetForm(c.UserContext(), middleware.ActorFrom(c), c.Params("id"))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, form, fiber.StatusOK)
}

// GetFormByCourse handles GET /api/forms/by-course/:courseId
// @Summary Resolve the active form of a course
// @Description Returns the oldest published, active form serving the course, or null.
// @Tags Forms
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} models.Form
// @Router /forms/by-course/{courseId} [get]
func (h *FormHandler) GetFormByCourse(c *fiber.Ctx) error {
	form, err := h.Forms.GetFormByCourseID(c.UserContext(), c.Params("courseId"))
	if err != nil {
		return err
	}
	if form == nil {
		return c.Status(fiber.StatusOK).JSON(nil)
	}
	return utils.SuccessResponse(c, form, fiber.StatusOK)
}

// CreateForm handles POST /api/forms
// @Summary Create form
// @Tags Forms
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.FormInput true "Form"
// @Success 201 {object} models.Form
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Router /forms [post]
func (h *FormHandler) CreateForm(c *fiber.Ctx) error {
	var in services.FormInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	form, err := h.Forms.CreateForm(c.UserContext(), middleware.ActorFrom(c), in)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, form, fiber.StatusCreated)
}

// UpdateForm handles PUT /api/forms/:id
// @Summary Update form
// @Description Partial update. Send the version you read to detect concurrent edits.
// @Tags Forms
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Form ID"
// @Param body body services.FormInput true "Changes"
// @Success 200 {object} models.Form
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /forms/{id} [put]
func (h *FormHandler) UpdateForm(c *fiber.Ctx) error {
	var in services.FormInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	form, err := h.Forms.UpdateForm(c.UserContext(), middleware.ActorFrom(c), c.Params("id"), in)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, form, fiber.StatusOK)
}

// DeleteForm handles DELETE /api/forms/:id
// @Summary Delete draft form
// @Tags Forms
// @Produce json
// @Security BearerAuth
// @Param id path string true "Form ID"
// @Success 200 {object} utils.DeletedResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /forms/{id} [delete]
func (h *FormHandler) DeleteForm(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.Forms.DeleteForm(c.UserContext(), middleware.ActorFrom(c), id); err != nil {
		return err
	}
	return utils.DeletedResponse(c, id)
}

// PublishForm handles POST /api/forms/:id/publish
// @Summary Publish form
// @Tags Forms
// @Produce json
// @Security BearerAuth
// @Param id path string true "Form ID"
// @Success 200 {object} models.Form
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /forms/{id}/publish [post]
func (h *FormHandler) PublishForm(c *fiber.Ctx) error {
	form, err := h.Forms.PublishForm(c.UserContext(), middleware.ActorFrom(c), c.Params("id"))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, form, fiber.StatusOK)
}

// ArchiveForm handles POST /api/forms/:id/archive
// @Summary Archive form
// @Tags Forms
// @Produce json
// @Security BearerAuth
// @Param id path string true "Form ID"
// @Success 200 {object} models.Form
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /forms/{id}/archive [post]
func (h *FormHandler) ArchiveForm(c *fiber.Ctx) error {
	form, err := h.Forms.ArchiveForm(c.UserContext(), middleware.ActorFrom(c), c.Params("id"))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, form, fiber.StatusOK)
}

// DuplicateForm handles POST /api/forms/:id/duplicate
// @Summary Duplicate form
// @Description Copies fields and scope into a new draft named "<name> (Copy)".
// @Tags Forms
// @Produce json
// @Security BearerAuth
// @Param id path string true "Form ID"
// @Success 201 {object} models.Form
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /forms/{id}/duplicate [post]
func (h *FormHandler) DuplicateForm(c *fiber.Ctx) error {
	form, err := h.Forms.DuplicateForm(c.UserContext(), middleware.ActorFrom(c), c.Params("id"))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, form, fiber.StatusCreated)
}
