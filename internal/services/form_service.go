// form_service.go
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

package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/localnerve/jam-build-intakedb/internal/logger"
	"github.com/localnerve/jam-build-intakedb/internal/models"
	"github.com/localnerve/jam-build-intakedb/internal/scope"
	"github.com/localnerve/jam-build-intakedb/internal/types"
	"github.com/localnerve/jam-build-intakedb/internal/validation"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/hints"
)

// FormService composes catalog fields into tenant owned forms and drives their status.
type FormService struct {
	DB      *gorm.DB
	Catalog *CatalogService
	Log     logger.Logger
	Now     func() time.Time
}

func NewFormService(db *gorm.DB, catalog *CatalogService, log logger.Logger) *FormService {
	return &FormService{DB: db, Catalog: catalog, Log: log, Now: time.Now}
}

// FormFieldInput places a catalog field into a form with optional overrides.
type FormFieldInput struct {
	FieldID     string             `json:"fieldId"`
	CustomLabel string             `json:"customLabel"`
	IsVisible   *bool              `json:"isVisible"`
	IsRequired  *bool              `json:"isRequired"`
	Order       *int               `json:"order"`
	Validation  *[]validation.Rule `json:"validation"`
}

// FormInput creates or partially updates a form.
type FormInput struct {
	Name                *string                 `json:"name"`
	Title               *string                 `json:"title"`
	Description         *string                 `json:"description"`
	OrganizationID      *string                 `json:"organizationId"`
	UniversityID        *string                 `json:"universityId"`
	CourseIDs           *types.FlexList[string] `json:"courseIds"`
	Fields              *[]FormFieldInput       `json:"fields"`
	CustomCategoryNames *map[string]string      `json:"customCategoryNames"`
	IsActive            *bool                   `json:"isActive"`
	StartDate           *time.Time              `json:"startDate"`
	EndDate             *time.Time              `json:"endDate"`
	Version             types.FlexUint64        `json:"version"`
}

// structural reports whether the input touches what only drafts may change.
func (in FormInput) structural() bool {
	return in.Name != nil || in.Fields != nil || in.OrganizationID != nil ||
		in.UniversityID != nil || in.CourseIDs != nil
}

// FormQuery filters ListForms.
type FormQuery struct {
	UniversityID string
	Status       string
	CourseID     string
}

// FieldsOf decodes a form's configured fields.
func FieldsOf(form *models.Form) ([]validation.ConfiguredField, error) {
	fields := make([]validation.ConfiguredField, 0)
	if err := form.Fields.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode form fields: %w", err)
	}
	return fields, nil
}

// composeFields resolves every reference against the catalog and applies overrides.
func (s *FormService) composeFields(ctx context.Context, in []FormFieldInput) ([]validation.ConfiguredField, error) {
	ids := make([]string, 0, len(in))
	for _, ref := range in {
		ids = append(ids, ref.FieldID)
	}
	catalog, err := s.Catalog.FieldsByID(ctx, types.CompactStrings(ids))
	if err != nil {
		return nil, err
	}

	var errs []validation.FieldError
	seen := make(map[string]struct{}, len(in))
	out := make([]validation.ConfiguredField, 0, len(in))
	for i, ref := range in {
		key := fmt.Sprintf("fields[%d]", i)
		f, ok := catalog[ref.FieldID]
		if !ok {
			errs = append(errs, validation.FieldError{Field: key, Rule: validation.RuleReference, Message: fmt.Sprintf("unknown field %q", ref.FieldID)})
			continue
		}

		cf := validation.ConfiguredField{
			FieldID:       f.ID,
			Name:          f.Name,
			Label:         f.Label,
			CustomLabel:   strings.TrimSpace(ref.CustomLabel),
			Type:          validation.FieldType(f.Type),
			CategoryID:    deref(f.CategoryID),
			SubcategoryID: deref(f.SubcategoryID),
			IsVisible:     true,
			Order:         i,
		}
		if err := f.Options.Decode(&cf.Options); err != nil {
			return nil, fmt.Errorf("decode options of %s: %w", f.Name, err)
		}
		if err := f.Validation.Decode(&cf.Validation); err != nil {
			return nil, fmt.Errorf("decode rules of %s: %w", f.Name, err)
		}

		if ref.IsVisible != nil {
			cf.IsVisible = *ref.IsVisible
		}
		if ref.IsRequired != nil {
			cf.IsRequired = *ref.IsRequired
		}
		if ref.Order != nil {
			cf.Order = *ref.Order
		}
		if ref.Validation != nil {
			if rerrs := validation.CheckRules(key+".validation", cf.Type, *ref.Validation); len(rerrs) > 0 {
				errs = append(errs, rerrs...)
				continue
			}
			cf.Validation = *ref.Validation
		}

		if _, dup := seen[cf.Name]; dup {
			errs = append(errs, validation.FieldError{Field: key, Rule: validation.RuleUnique, Message: fmt.Sprintf("field %q appears more than once", cf.Name)})
			continue
		}
		seen[cf.Name] = struct{}{}
		out = append(out, cf)
	}

	if len(errs) > 0 {
		return nil, fieldErrors("invalid form fields", errs)
	}
	return validation.Ordered(out), nil
}

func checkWindow(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return types.BadRequestError("endDate must not be before startDate")
	}
	return nil
}

// CreateForm stores a new draft form.
func (s *FormService) CreateForm(ctx context.Context, actor *scope.Actor, in FormInput) (*models.Form, error) {
	if err := scope.ValidateUniversityAccess(actor, deref(in.UniversityID)); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(deref(in.Name))
	if name == "" {
		return nil, types.BadRequestError("name is required")
	}
	title := strings.TrimSpace(deref(in.Title))
	if title == "" {
		title = name
	}
	if err := checkWindow(in.StartDate, in.EndDate); err != nil {
		return nil, err
	}

	fields := make([]validation.ConfiguredField, 0)
	if in.Fields != nil {
		var err error
		if fields, err = s.composeFields(ctx, *in.Fields); err != nil {
			return nil, err
		}
	}
	fieldsJSON, err := models.NewJSON(fields)
	if err != nil {
		return nil, err
	}
	names := map[string]string{}
	if in.CustomCategoryNames != nil {
		names = *in.CustomCategoryNames
	}

	form := models.Form{
		Name:                name,
		Title:               title,
		Description:         deref(in.Description),
		OrganizationID:      strPtr(deref(in.OrganizationID)),
		UniversityID:        strPtr(deref(in.UniversityID)),
		Fields:              fieldsJSON,
		CustomCategoryNames: models.MustJSON(names),
		Status:              models.FormDraft,
		IsActive:            true,
		StartDate:           in.StartDate,
		EndDate:             in.EndDate,
		Version:             1,
		CreatedBy:           actor.UserID,
	}
	if in.IsActive != nil {
		form.IsActive = *in.IsActive
	}
	var courses []string
	if in.CourseIDs != nil {
		courses = types.CompactStrings(in.CourseIDs.Slice())
	}
	form.SetCourseIDs(courses)

	if err := s.DB.WithContext(ctx).Create(&form).Error; err != nil {
		return nil, fmt.Errorf("create form: %w", err)
	}
	s.Log.Info("form created", map[string]interface{}{"formId": form.ID, "createdBy": actor.UserID})
	return &form, nil
}

func (s *FormService) load(ctx context.Context, db *gorm.DB, id string) (*models.Form, error) {
	var form models.Form
	if err := quiet(db).WithContext(ctx).Preload("Courses").First(&form, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, types.NotFoundError("form not found")
		}
		return nil, fmt.Errorf("load form: %w", err)
	}
	return &form, nil
}

// loadManaged loads a form the staff actor may manage. Others' forms read as missing.
func (s *FormService) loadManaged(ctx context.Context, actor *scope.Actor, id string) (*models.Form, error) {
	if actor == nil || !actor.IsStaff() {
		return nil, types.ForbiddenError("insufficient role")
	}
	form, err := s.load(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	if !scope.CanManage(actor, form.UniversityKey()) {
		return nil, types.NotFoundError("form not found")
	}
	return form, nil
}

// publicView drops invisible fields for applicant facing reads.
func publicView(form *models.Form) (*models.Form, error) {
	fields, err := FieldsOf(form)
	if err != nil {
		return nil, err
	}
	visible := make([]validation.ConfiguredField, 0, len(fields))
	for _, f := range fields {
		if f.IsVisible {
			visible = append(visible, f)
		}
	}
	view := *form
	view.Fields = models.MustJSON(visible)
	return &view, nil
}

// GetForm returns a form. Learners only see published forms, without invisible fields.
func (s *FormService) GetForm(ctx context.Context, actor *scope.Actor, id string) (*models.Form, error) {
	if actor != nil && actor.IsStaff() {
		return s.loadManaged(ctx, actor, id)
	}
	form, err := s.load(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	if form.Status != models.FormPublished {
		return nil, types.NotFoundError("form not found")
	}
	return publicView(form)
}

// ListForms returns the forms visible to a staff actor.
func (s *FormService) ListForms(ctx context.Context, actor *scope.Actor, q FormQuery) ([]models.Form, error) {
	if actor == nil || !actor.IsStaff() {
		return nil, types.ForbiddenError("insufficient role")
	}
	filter, err := scope.ScopeList(actor, q.UniversityID)
	if err != nil {
		return nil, err
	}

	query := s.DB.WithContext(ctx).Model(&models.Form{}).
		Clauses(hints.CommentBefore("select", "intakedb:list-forms")).
		Preload("Courses")
	if filter.UniversityID != "" {
		query = query.Where("university_id = ?", filter.UniversityID)
	}
	if q.Status != "" {
		switch q.Status {
		case models.FormDraft, models.FormPublished, models.FormArchived:
			query = query.Where("status = ?", q.Status)
		default:
			return nil, types.BadRequestError(fmt.Sprintf("unknown form status %q", q.Status))
		}
	}
	if q.CourseID != "" {
		query = query.Where("id IN (?)", s.DB.Model(&models.FormCourse{}).Select("form_id").Where("course_id = ?", q.CourseID))
	}

	forms := make([]models.Form, 0)
	if err := query.Order("created_at DESC").Find(&forms).Error; err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	return forms, nil
}

// lockCourses takes row locks on every course link for courseIDs so concurrent publishes
// serialize on the courses they share. SQLite serializes writers itself and SQL Server is
// left best-effort.
func lockCourses(tx *gorm.DB, courseIDs []string) error {
	switch tx.Dialector.Name() {
	case "sqlite", "sqlserver":
		return nil
	}
	var links []models.FormCourse
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("course_id IN ?", courseIDs).
		Find(&links).Error
	if err != nil {
		return fmt.Errorf("lock courses: %w", err)
	}
	return nil
}

// courseConflict finds another published, active form serving any of courseIDs.
// The course links are locked first.
func courseConflict(tx *gorm.DB, formID string, courseIDs []string) (*models.Form, error) {
	if len(courseIDs) == 0 {
		return nil, nil
	}
	if err := lockCourses(tx, courseIDs); err != nil {
		return nil, err
	}
	var other models.Form
	err := quiet(tx).
		Where("id IN (?)", tx.Model(&models.FormCourse{}).Select("form_id").Where("course_id IN ?", courseIDs)).
		Where("status = ? AND is_active = ? AND id <> ?", models.FormPublished, true, formID).
		Take(&other).Error
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &other, nil
}

// UpdateForm applies a partial update guarded by the form version.
func (s *FormService) UpdateForm(ctx context.Context, actor *scope.Actor, id string, in FormInput) (*models.Form, error) {
	form, err := s.loadManaged(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	switch form.Status {
	case models.FormArchived:
		return nil, types.ConflictError("archived forms cannot be changed", form.Status)
	case models.FormPublished:
		if in.structural() {
			return nil, types.ConflictError("published forms only accept isActive, startDate, endDate, title, description and customCategoryNames", form.Status)
		}
	}

	expected := form.Version
	if v := in.Version.Uint64(); v != 0 && v != expected {
		return nil, types.VersionError(expected)
	}

	updates := map[string]interface{}{"version": expected + 1}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, types.BadRequestError("name cannot be empty")
		}
		updates["name"] = name
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, types.BadRequestError("title cannot be empty")
		}
		updates["title"] = title
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.OrganizationID != nil {
		updates["organization_id"] = strPtr(*in.OrganizationID)
	}
	if in.UniversityID != nil {
		if err := scope.ValidateUniversityAccess(actor, *in.UniversityID); err != nil {
			return nil, err
		}
		updates["university_id"] = strPtr(*in.UniversityID)
	}
	if in.Fields != nil {
		fields, err := s.composeFields(ctx, *in.Fields)
		if err != nil {
			return nil, err
		}
		updates["fields"] = models.MustJSON(fields)
	}
	if in.CustomCategoryNames != nil {
		updates["custom_category_names"] = models.MustJSON(*in.CustomCategoryNames)
	}
	if in.IsActive != nil {
		updates["is_active"] = *in.IsActive
	}
	start, end := form.StartDate, form.EndDate
	if in.StartDate != nil {
		start = in.StartDate
		updates["start_date"] = in.StartDate
	}
	if in.EndDate != nil {
		end = in.EndDate
		updates["end_date"] = in.EndDate
	}
	if err := checkWindow(start, end); err != nil {
		return nil, err
	}

	reactivating := form.Status == models.FormPublished && in.IsActive != nil && *in.IsActive && !form.IsActive

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if reactivating {
			other, err := courseConflict(tx, form.ID, form.CourseIDs)
			if err != nil {
				return err
			}
			if other != nil {
				return types.ConflictError(fmt.Sprintf("course already has the active published form %s", other.ID), "")
			}
		}

		res := tx.Model(&models.Form{}).Where("id = ? AND version = ?", id, expected).Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("update form: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var current models.Form
			if err := quiet(tx).Select("version").First(&current, "id = ?", id).Error; err != nil {
				return err
			}
			return types.VersionError(current.Version)
		}

		if in.CourseIDs != nil {
			if err := tx.Where("form_id = ?", id).Delete(&models.FormCourse{}).Error; err != nil {
				return fmt.Errorf("clear courses: %w", err)
			}
			links := make([]models.FormCourse, 0)
			for _, c := range types.CompactStrings(in.CourseIDs.Slice()) {
				links = append(links, models.FormCourse{FormID: id, CourseID: c})
			}
			if len(links) > 0 {
				if err := tx.Create(&links).Error; err != nil {
					return fmt.Errorf("link courses: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.load(ctx, s.DB, id)
}

// PublishForm moves a draft to published. The form needs a visible field and no other
// active published form may serve the same course.
func (s *FormService) PublishForm(ctx context.Context, actor *scope.Actor, id string) (*models.Form, error) {
	form, err := s.loadManaged(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if form.Status != models.FormDraft {
		return nil, types.ConflictError(fmt.Sprintf("cannot publish a %s form", form.Status), form.Status)
	}

	fields, err := FieldsOf(form)
	if err != nil {
		return nil, err
	}
	visible := 0
	for _, f := range fields {
		if f.IsVisible {
			visible++
		}
	}
	if visible == 0 {
		return nil, types.ValidationError("a form needs at least one visible field to be published", []validation.FieldError{
			{Field: "fields", Rule: validation.RuleRequired, Message: "at least one visible field is required"},
		})
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if form.IsActive {
			other, err := courseConflict(tx, form.ID, form.CourseIDs)
			if err != nil {
				return err
			}
			if other != nil {
				return types.ConflictError(fmt.Sprintf("course already has the active published form %s", other.ID), "")
			}
		}
		return s.swapStatus(tx, id, models.FormDraft, models.FormPublished, map[string]interface{}{"is_launched": true})
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("form published", map[string]interface{}{"formId": id, "by": actor.UserID})
	return s.load(ctx, s.DB, id)
}

// ArchiveForm retires a published form. Nothing leaves archived.
func (s *FormService) ArchiveForm(ctx context.Context, actor *scope.Actor, id string) (*models.Form, error) {
	form, err := s.loadManaged(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if form.Status != models.FormPublished {
		return nil, types.ConflictError(fmt.Sprintf("cannot archive a %s form", form.Status), form.Status)
	}
	if err := s.swapStatus(s.DB.WithContext(ctx), id, models.FormPublished, models.FormArchived, nil); err != nil {
		return nil, err
	}
	s.Log.Info("form archived", map[string]interface{}{"formId": id, "by": actor.UserID})
	return s.load(ctx, s.DB, id)
}

// swapStatus is the conditional status update for forms.
func (s *FormService) swapStatus(tx *gorm.DB, id, from, to string, extra map[string]interface{}) error {
	updates := map[string]interface{}{"status": to, "version": gorm.Expr("version + 1")}
	for k, v := range extra {
		updates[k] = v
	}
	res := tx.Model(&models.Form{}).Where("id = ? AND status = ?", id, from).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update form status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var current models.Form
		if err := quiet(tx).Select("status").First(&current, "id = ?", id).Error; err != nil {
			if isNotFound(err) {
				return types.NotFoundError("form not found")
			}
			return err
		}
		return types.ConflictError(fmt.Sprintf("form is %s", current.Status), current.Status)
	}
	return nil
}

// DuplicateForm copies a form into a new independent draft.
func (s *FormService) DuplicateForm(ctx context.Context, actor *scope.Actor, id string) (*models.Form, error) {
	src, err := s.loadManaged(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	dup := models.Form{
		Name:                src.Name + " (Copy)",
		Title:               src.Title + " (Copy)",
		Description:         src.Description,
		OrganizationID:      src.OrganizationID,
		UniversityID:        src.UniversityID,
		Fields:              src.Fields.Clone(),
		CustomCategoryNames: src.CustomCategoryNames.Clone(),
		Status:              models.FormDraft,
		IsLaunched:          false,
		IsActive:            src.IsActive,
		StartDate:           src.StartDate,
		EndDate:             src.EndDate,
		Version:             1,
		CreatedBy:           actor.UserID,
	}
	dup.SetCourseIDs(append([]string(nil), src.CourseIDs...))

	if err := s.DB.WithContext(ctx).Create(&dup).Error; err != nil {
		return nil, fmt.Errorf("duplicate form: %w", err)
	}
	s.Log.Info("form duplicated", map[string]interface{}{"formId": dup.ID, "sourceId": src.ID})
	return &dup, nil
}

// GetFormByCourseID returns the oldest active published form for a course, or nil.
func (s *FormService) GetFormByCourseID(ctx context.Context, courseID string) (*models.Form, error) {
	var form models.Form
	err := quiet(s.DB).WithContext(ctx).
		Preload("Courses").
		Where("id IN (?)", s.DB.Model(&models.FormCourse{}).Select("form_id").Where("course_id = ?", courseID)).
		Where("status = ? AND is_active = ?", models.FormPublished, true).
		Order("created_at ASC").Order("id ASC").
		Take(&form).Error
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("form by course: %w", err)
	}
	return publicView(&form)
}

// DeleteForm removes a draft form.
func (s *FormService) DeleteForm(ctx context.Context, actor *scope.Actor, id string) error {
	form, err := s.loadManaged(ctx, actor, id)
	if err != nil {
		return err
	}
	if form.Status != models.FormDraft {
		return types.ConflictError(fmt.Sprintf("cannot delete a %s form", form.Status), form.Status)
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND status = ?", id, models.FormDraft).Delete(&models.Form{})
		if res.Error != nil {
			return fmt.Errorf("delete form: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return types.ConflictError("form is no longer a draft", "")
		}
		return tx.Where("form_id = ?", id).Delete(&models.FormCourse{}).Error
	})
}
