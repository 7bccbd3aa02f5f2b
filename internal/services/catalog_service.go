package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/localnerve/jam-build-intakedb/internal/logger"
	"github.com/localnerve/jam-build-intakedb/internal/models"
	"github.com/localnerve/jam-build-intakedb/internal/types"
	"github.com/localnerve/jam-build-intakedb/internal/validation"
	"gorm.io/gorm"
	"gorm.io/hints"
)

// CatalogService manages categories, subcategories and catalog fields.
type CatalogService struct {
	DB  *gorm.DB
	Log logger.Logger
}

func NewCatalogService(db *gorm.DB, log logger.Logger) *CatalogService {
	return &CatalogService{DB: db, Log: log}
}

// CategoryInput creates or updates a category or subcategory. Nil pointers are left unchanged on update.
type CategoryInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Order       *int    `json:"order"`
}

// FieldInput creates or updates a catalog field. Nil pointers are left unchanged on update.
type FieldInput struct {
	Name          *string              `json:"name"`
	Label         *string              `json:"label"`
	Type          *string              `json:"type"`
	CategoryID    *string              `json:"categoryId"`
	SubcategoryID *string              `json:"subcategoryId"`
	Options       *[]validation.Option `json:"options"`
	Validation    *[]validation.Rule   `json:"validation"`
	Order         *int                 `json:"order"`
	Placeholder   *string              `json:"placeholder"`
	HelpText      *string              `json:"helpText"`
}

// FieldQuery filters SearchFields.
type FieldQuery struct {
	Search        string
	CategoryID    string
	SubcategoryID string
	Sort          string
}

var fieldSortColumns = map[string]string{
	"order":     "sort_order",
	"name":      "name",
	"label":     "label",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

// ListCategories returns the taxonomy ordered by order, then name.
func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	var cats []models.Category
	err := quiet(s.DB).WithContext(ctx).
		Preload("Subcategories", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC").Order("name ASC")
		}).
		Order("sort_order ASC").Order("name ASC").
		Find(&cats).Error
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

func (s *CatalogService) CreateCategory(ctx context.Context, in CategoryInput) (*models.Category, error) {
	name := strings.TrimSpace(deref(in.Name))
	if name == "" {
		return nil, types.BadRequestError("name is required")
	}
	cat := models.Category{Name: name, Description: deref(in.Description)}
	if in.Order != nil {
		cat.Order = *in.Order
	}
	if err := s.DB.WithContext(ctx).Create(&cat).Error; err != nil {
		if isDuplicate(err) {
			return nil, types.ConflictError(fmt.Sprintf("category %q already exists", name), "")
		}
		return nil, fmt.Errorf("create category: %w", err)
	}
	return &cat, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id string, in CategoryInput) (*models.Category, error) {
	var cat models.Category
	if err := quiet(s.DB).WithContext(ctx).First(&cat, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, types.NotFoundError("category not found")
		}
		return nil, fmt.Errorf("load category: %w", err)
	}

	updates := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, types.BadRequestError("name cannot be empty")
		}
		updates["name"] = name
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.Order != nil {
		updates["sort_order"] = *in.Order
	}
	if len(updates) > 0 {
		if err := s.DB.WithContext(ctx).Model(&cat).Updates(updates).Error; err != nil {
			if isDuplicate(err) {
				return nil, types.ConflictError("category name already exists", "")
			}
			return nil, fmt.Errorf("update category: %w", err)
		}
	}
	if err := s.DB.WithContext(ctx).First(&cat, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("reload category: %w", err)
	}
	return &cat, nil
}

// DeleteCategory removes a category. Subcategories block the delete unless cascade is set;
// fields are detached, never deleted.
func (s *CatalogService) DeleteCategory(ctx context.Context, id string, cascade bool) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cat models.Category
		if err := quiet(tx).First(&cat, "id = ?", id).Error; err != nil {
			if isNotFound(err) {
				return types.NotFoundError("category not found")
			}
			return err
		}

		var subs int64
		if err := tx.Model(&models.Subcategory{}).Where("category_id = ?", id).Count(&subs).Error; err != nil {
			return err
		}
		if subs > 0 && !cascade {
			return types.ConflictError(fmt.Sprintf("category has %d subcategories; retry with cascade=true", subs), "")
		}

		if err := tx.Model(&models.Field{}).Where("category_id = ?", id).
			Updates(map[string]interface{}{"category_id": nil, "subcategory_id": nil}).Error; err != nil {
			return fmt.Errorf("detach fields: %w", err)
		}
		if err := tx.Where("category_id = ?", id).Delete(&models.Subcategory{}).Error; err != nil {
			return fmt.Errorf("delete subcategories: %w", err)
		}
		if err := tx.Delete(&models.Category{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("delete category: %w", err)
		}

		s.Log.Info("category deleted", map[string]interface{}{"categoryId": id, "subcategories": subs})
		return nil
	})
}

func (s *CatalogService) CreateSubcategory(ctx context.Context, categoryID string, in CategoryInput) (*models.Subcategory, error) {
	name := strings.TrimSpace(deref(in.Name))
	if name == "" {
		return nil, types.BadRequestError("name is required")
	}
	var cat models.Category
	if err := quiet(s.DB).WithContext(ctx).First(&cat, "id = ?", categoryID).Error; err != nil {
		if isNotFound(err) {
			return nil, types.NotFoundError("category not found")
		}
		return nil, fmt.Errorf("load category: %w", err)
	}

	sub := models.Subcategory{CategoryID: categoryID, Name: name, Description: deref(in.Description)}
	if in.Order != nil {
		sub.Order = *in.Order
	}
	if err := s.DB.WithContext(ctx).Create(&sub).Error; err != nil {
		return nil, fmt.Errorf("create subcategory: %w", err)
	}
	return &sub, nil
}

// DeleteSubcategory removes a subcategory and clears it from fields.
func (s *CatalogService) DeleteSubcategory(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Subcategory{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("delete subcategory: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return types.NotFoundError("subcategory not found")
		}
		return tx.Model(&models.Field{}).Where("subcategory_id = ?", id).
			Update("subcategory_id", nil).Error
	})
}

// resolveTaxonomy checks that categoryID exists and subcategoryID, if set, belongs to it.
func (s *CatalogService) resolveTaxonomy(ctx context.Context, categoryID, subcategoryID string) error {
	if categoryID != "" {
		var n int64
		if err := s.DB.WithContext(ctx).Model(&models.Category{}).Where("id = ?", categoryID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return types.NotFoundError("category not found")
		}
	}
	if subcategoryID != "" {
		var sub models.Subcategory
		if err := quiet(s.DB).WithContext(ctx).First(&sub, "id = ?", subcategoryID).Error; err != nil {
			if isNotFound(err) {
				return types.NotFoundError("subcategory not found")
			}
			return err
		}
		if sub.CategoryID != categoryID {
			return types.NotFoundError("subcategory not found in category")
		}
	}
	return nil
}

// checkFieldShape runs the authoring checks shared by create and update.
func checkFieldShape(f *models.Field) error {
	var errs []validation.FieldError
	if !validation.FieldNamePattern.MatchString(f.Name) {
		errs = append(errs, validation.FieldError{Field: "name", Rule: validation.RulePattern, Message: "name must start with a letter and contain only letters, digits and underscores"})
	}
	if strings.TrimSpace(f.Label) == "" {
		errs = append(errs, validation.FieldError{Field: "label", Rule: validation.RuleRequired, Message: "label is required"})
	}
	ft := validation.FieldType(f.Type)
	if !ft.Valid() {
		errs = append(errs, validation.FieldError{Field: "type", Rule: validation.RuleTypeMismatch, Message: fmt.Sprintf("unknown field type %q", f.Type)})
	}

	var rules []validation.Rule
	if err := f.Validation.Decode(&rules); err != nil {
		errs = append(errs, validation.FieldError{Field: "validation", Rule: validation.RuleTypeMismatch, Message: err.Error()})
	}
	errs = append(errs, validation.CheckRules("validation", ft, rules)...)

	var options []validation.Option
	if err := f.Options.Decode(&options); err != nil {
		errs = append(errs, validation.FieldError{Field: "options", Rule: validation.RuleTypeMismatch, Message: err.Error()})
	}
	if ft.HasOptions() || len(options) > 0 {
		errs = append(errs, validation.CheckOptions("options", ft, options)...)
	}

	if len(errs) > 0 {
		return fieldErrors("invalid field definition", errs)
	}
	return nil
}

func applyFieldInput(f *models.Field, in FieldInput) error {
	if in.Name != nil {
		f.Name = strings.TrimSpace(*in.Name)
	}
	if in.Label != nil {
		f.Label = strings.TrimSpace(*in.Label)
	}
	if in.Type != nil {
		f.Type = *in.Type
	}
	if in.CategoryID != nil {
		f.CategoryID = strPtr(*in.CategoryID)
	}
	if in.SubcategoryID != nil {
		f.SubcategoryID = strPtr(*in.SubcategoryID)
	}
	if in.Options != nil {
		j, err := models.NewJSON(*in.Options)
		if err != nil {
			return err
		}
		f.Options = j
	}
	if in.Validation != nil {
		j, err := models.NewJSON(*in.Validation)
		if err != nil {
			return err
		}
		f.Validation = j
	}
	if in.Order != nil {
		f.Order = *in.Order
	}
	if in.Placeholder != nil {
		f.Placeholder = *in.Placeholder
	}
	if in.HelpText != nil {
		f.HelpText = *in.HelpText
	}
	return nil
}

func (s *CatalogService) CreateField(ctx context.Context, in FieldInput) (*models.Field, error) {
	if deref(in.CategoryID) == "" {
		return nil, types.BadRequestError("categoryId is required")
	}
	f := models.Field{Options: models.MustJSON([]validation.Option{}), Validation: models.MustJSON([]validation.Rule{})}
	if err := applyFieldInput(&f, in); err != nil {
		return nil, types.BadRequestError(err.Error())
	}
	if err := checkFieldShape(&f); err != nil {
		return nil, err
	}
	if err := s.resolveTaxonomy(ctx, deref(f.CategoryID), deref(f.SubcategoryID)); err != nil {
		return nil, err
	}

	if err := s.DB.WithContext(ctx).Create(&f).Error; err != nil {
		if isDuplicate(err) {
			return nil, types.ConflictError(fmt.Sprintf("field name %q already exists", f.Name), "")
		}
		return nil, fmt.Errorf("create field: %w", err)
	}
	return &f, nil
}

func (s *CatalogService) UpdateField(ctx context.Context, id string, in FieldInput) (*models.Field, error) {
	f, err := s.GetField(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.CategoryID != nil && *in.CategoryID == "" {
		return nil, types.BadRequestError("categoryId cannot be cleared")
	}
	if in.CategoryID != nil && in.SubcategoryID == nil && deref(f.CategoryID) != *in.CategoryID {
		// moving category drops a subcategory that cannot follow
		f.SubcategoryID = nil
	}
	if err := applyFieldInput(f, in); err != nil {
		return nil, types.BadRequestError(err.Error())
	}
	if err := checkFieldShape(f); err != nil {
		return nil, err
	}
	if err := s.resolveTaxonomy(ctx, deref(f.CategoryID), deref(f.SubcategoryID)); err != nil {
		return nil, err
	}

	if err := s.DB.WithContext(ctx).Save(f).Error; err != nil {
		if isDuplicate(err) {
			return nil, types.ConflictError(fmt.Sprintf("field name %q already exists", f.Name), "")
		}
		return nil, fmt.Errorf("update field: %w", err)
	}
	return f, nil
}

func (s *CatalogService) DeleteField(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Delete(&models.Field{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete field: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return types.NotFoundError("field not found")
	}
	return nil
}

func (s *CatalogService) GetField(ctx context.Context, id string) (*models.Field, error) {
	var f models.Field
	if err := quiet(s.DB).WithContext(ctx).First(&f, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, types.NotFoundError("field not found")
		}
		return nil, fmt.Errorf("load field: %w", err)
	}
	return &f, nil
}

// FieldsByID loads catalog fields keyed by id. Missing ids are simply absent.
func (s *CatalogService) FieldsByID(ctx context.Context, ids []string) (map[string]models.Field, error) {
	out := make(map[string]models.Field, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var fields []models.Field
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&fields).Error; err != nil {
		return nil, fmt.Errorf("load fields: %w", err)
	}
	for _, f := range fields {
		out[f.ID] = f
	}
	return out, nil
}

// parseSort turns "name" or "-name" into an ORDER BY clause over the whitelist.
func parseSort(sort string) (string, error) {
	sort = strings.TrimSpace(sort)
	if sort == "" {
		return "sort_order ASC, name ASC", nil
	}
	dir := "ASC"
	if strings.HasPrefix(sort, "-") {
		dir = "DESC"
		sort = sort[1:]
	}
	col, ok := fieldSortColumns[sort]
	if !ok {
		return "", types.ValidationError(fmt.Sprintf("cannot sort by %q", sort), []validation.FieldError{
			{Field: "sort", Rule: validation.RuleOption, Message: "sort must be one of order, name, label, createdAt, updatedAt"},
		})
	}
	return fmt.Sprintf("%s %s", col, dir), nil
}

// SearchFields filters the catalog by free text or taxonomy.
func (s *CatalogService) SearchFields(ctx context.Context, q FieldQuery) ([]models.Field, error) {
	order, err := parseSort(q.Sort)
	if err != nil {
		return nil, err
	}

	query := s.DB.WithContext(ctx).Model(&models.Field{}).
		Clauses(hints.CommentBefore("select", "intakedb:search-fields"))

	if search := strings.TrimSpace(q.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(label) LIKE ?", like, like)
	}
	if q.CategoryID != "" {
		query = query.Where("category_id = ?", q.CategoryID)
	}
	if q.SubcategoryID != "" {
		query = query.Where("subcategory_id = ?", q.SubcategoryID)
	}

	fields := make([]models.Field, 0)
	if err := query.Order(order).Find(&fields).Error; err != nil {
		return nil, fmt.Errorf("search fields: %w", err)
	}
	return fields, nil
}
