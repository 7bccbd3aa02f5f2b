// applications.go
//
// Tenant-scoped intake forms and application review service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of jam-build-intakedb.
// jam-build-intakedb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// jam-build-intakedb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with jam-build-intakedb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-intakedb/internal/middleware"
	"github.com/localnerve/jam-build-intakedb/internal/services"
	"github.com/localnerve/jam-build-intakedb/internal/utils"
)

// ApplicationHandler handles application submission and review routes
type ApplicationHandler struct {
	Apps *services.ApplicationService
}

// CreateApplication handles POST /api/applications
// @Summary Create or submit an application
// @Description Creates a draft, or a submitted application when submit is true. A repeated
// @Description Idempotency-Key (or submissionToken) returns the first application with 200.
// @Tags Applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Submission token"
// @Param body body services.CreateApplicationInput true "Application"
// @Success 201 {object} models.Application
// @Success 200 {object} models.Application
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /applications [post]
func (h *ApplicationHandler) CreateApplication(c *fiber.Ctx) error {
	var in services.CreateApplicationInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	if in.SubmissionToken == "" {
		in.SubmissionToken = c.Get("Idempotency-Key")
	}

	app, replayed, err := h.Apps.CreateApplication(c.UserContext(), middleware.ActorFrom(c), in)
	if err != nil {
		return err
	}
	if replayed {
		return utils.SuccessResponse(c, app, fiber.StatusOK)
	}
	return utils.SuccessResponse(c, app, fiber.StatusCreated)
}

// ListApplications handles GET /api/applications
// @Summary List applications
// @Description Learners see their own applications; admins one assigned university at a time.
// @Tags Applications
// @Produce json
// @Security BearerAuth
// @Param universityId query string false "University filter"
// @Param formId query string false "Form filter"
// @Param status query string false "Status filter"
// @Param search query string false "Applicant name or email"
// @Param page query int false "Page, from 1"
// @Param limit query int false "Page size, at most 200"
// @Success 200 {object} services.ApplicationList
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Router /applications [get]
func (h *ApplicationHandler) ListApplications(c *fiber.Ctx) error {
	page, err := pageFrom(c)
	if err != nil {
		return err
	}
	list, err := h.Apps.ListApplications(c.UserContext(), middleware.ActorFrom(c), services.ApplicationQuery{
		UniversityID: c.Query("universityId"),
		FormID:       c.Query("formId"),
		Status:       c.Query("status"),
		Search:       c.Query("search"),
		Page:         page,
	})
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, list, fiber.StatusOK)
}

// GetApplication handles GET /api/applications/:id
// @Summary Get application
// @Tags Applications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Application ID"
// @Success 200 {object} models.Application
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /applications/{id} [get]
func (h *ApplicationHandler) GetApplication(c *fiber.Ctx) error {
	app, err := h.Apps.GetApplication(c.UserContext(), middleware.ActorFrom(c), c.Params("id"))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, app, fiber.StatusOK)
}

// UpdateApplication handles PUT /api/applications/:id
// @Summary Update draft application
// @Tags Applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Application ID"
// @Param body body object true "{formData: {...}}"
// @Success 200 {object} models.Application
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /applications/{id} [put]
func (h *ApplicationHandler) UpdateApplication(c *fiber.Ctx) error {
	var body struct {
		FormData map[string]interface{} `json:"formData"`
	}
	if err := parseBody(c, &body); err != nil {
		return err
	}
	app, err := h.Apps.UpdateDraft(c.UserContext(), middleware.ActorFrom(c), c.Params("id"), body.FormData)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, app, fiber.StatusOK)
}

// SubmitApplication handles POST /api/applications/:id/submit
// @Summary Submit draft application
// @Tags Applications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Application ID"
// @Success 200 {object} models.Application
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /applications/{id}/submit [post]
func (h *ApplicationHandler) SubmitApplication(c *fiber.Ctx) error {
	app, err := h.Apps.SubmitApplication(c.UserContext(), middleware.ActorFrom(c), c.Params("id"))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, app, fiber.StatusOK)
}

// WithdrawApplication handles POST /api/applications/:id/withdraw
// @Summary Withdraw application
// @Tags Applications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Application ID"
// @Success 200 {object} models.Application
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /applications/{id}/withdraw [post]
func (h *ApplicationHandler) WithdrawApplication(c *fiber.Ctx) error {
	app, err := h.Apps.WithdrawApplication(c.UserContext(), middleware.ActorFrom(c), c.Params("id"))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, app, fiber.StatusOK)
}

// ReviewApplication handles POST /api/applications/:id/review
// @Summary Review application
// @Description status accepted or rejected decides; status submitted records stage progress only.
// @Tags Applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Application ID"
// @Param body body services.ReviewInput true "Review"
// @Success 200 {object} models.Application
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 401 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /applications/{id}/review [post]
func (h *ApplicationHandler) ReviewApplication(c *fiber.Ctx) error {
	var in services.ReviewInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	app, err := h.Apps.ReviewApplication(c.UserContext(), middleware.ActorFrom(c), c.Params("id"), in)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, app, fiber.StatusOK)
}

// History handles GET /api/applications/:id/history
// @Summary Application status history
// @Tags Applications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Application ID"
// @Success 200 {array} models.ApplicationStatusHistory
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /applications/{id}/history [get]
func (h *ApplicationHandler) History(c *fiber.Ctx) error {
	rows, err := h.Apps.History(c.UserContext(), middleware.ActorFrom(c), c.Params("id"))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, rows, fiber.StatusOK)
}

// DeleteApplication handles DELETE /api/applications/:id
// @Summary Delete application
// @Tags Applications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Application ID"
// @Success 200 {object} utils.DeletedResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /applications/{id} [delete]
func (h *ApplicationHandler) DeleteApplication(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.Apps.DeleteApplication(c.UserContext(), middleware.ActorFrom(c), id); err != nil {
		return err
	}
	return utils.DeletedResponse(c, id)
}
