package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-intakedb/internal/middleware"
	"github.com/localnerve/jam-build-intakedb/internal/services"
)

// Handlers groups every route handler of the API
type Handlers struct {
	Catalog      *CatalogHandler
	Forms        *FormHandler
	Applications *ApplicationHandler
	Health       *HealthHandler
}

// Register mounts the API on router, normally the /api group.
// Role checks here are coarse; services apply tenant scope.
func (h *Handlers) Register(router fiber.Router, auth *services.AuthService) {
	authn := middleware.Authenticate(auth)
	staff := middleware.StaffOnly()
	super := middleware.SuperadminOnly()

	// Public routes
	router.Get("/health", h.Health.Health)
	router.Get("/forms/by-course/:courseId", h.Forms.GetFormByCourse)

	// Catalog: read by anyone signed in, authored by superadmins
	router.Get("/categories", authn, h.Catalog.ListCategories)
	router.Post("/categories", authn, super, h.Catalog.CreateCategory)
	router.Put("/categories/:id", authn, super, h.Catalog.UpdateCategory)
	router.Delete("/categories/:id", authn, super, h.Catalog.DeleteCategory)
	router.Post("/categories/:id/subcategories", authn, super, h.Catalog.CreateSubcategory)
	router.Delete("/subcategories/:id", authn, super, h.Catalog.DeleteSubcategory)
	router.Get("/fields", authn, h.Catalog.SearchFields)
	router.Get("/fields/:id", authn, h.Catalog.GetField)
	router.Post("/fields", authn, super, h.Catalog.CreateField)
	router.Put("/fields/:id", authn, super, h.Catalog.UpdateField)
	router.Delete("/fields/:id", authn, super, h.Catalog.DeleteField)

	// Forms
	router.Get("/forms", authn, staff, h.Forms.ListForms)
	router.Get("/forms/:id", authn, h.Forms.GetForm)
	router.Post("/forms", authn, staff, h.Forms.CreateForm)
	router.Put("/forms/:id", authn, staff, h.Forms.UpdateForm)
	router.Delete("/forms/:id", authn, staff, h.Forms.DeleteForm)
	router.Post("/forms/:id/publish", authn, staff, h.Forms.PublishForm)
	router.Post("/forms/:id/archive", authn, staff, h.Forms.ArchiveForm)
	router.Post("/forms/:id/duplicate", authn, staff, h.Forms.DuplicateForm)

	// Applications
	router.Post("/applications", authn, h.Applications.CreateApplication)
	router.Get("/applications", authn, h.Applications.ListApplications)
	router.Get("/applications/:id", authn, h.Applications.GetApplication)
	router.Put("/applications/:id", authn, h.Applications.UpdateApplication)
	router.Post("/applications/:id/submit", authn, h.Applications.SubmitApplication)
	router.Post("/applications/:id/withdraw", authn, h.Applications.WithdrawApplication)
	router.Post("/applications/:id/review", authn, staff, h.Applications.ReviewApplication)
	router.Get("/applications/:id/history", authn, h.Applications.History)
	router.Delete("/applications/:id", authn, staff, h.Applications.DeleteApplication)
}
