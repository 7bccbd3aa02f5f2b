package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/localnerve/jam-build-intakedb/internal/models"
	"github.com/localnerve/jam-build-intakedb/internal/types"
	"github.com/localnerve/jam-build-intakedb/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFormScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	name := f.field(t, "fullName", validation.FieldText)

	refs := []FormFieldInput{{FieldID: name.ID}}
	_, err := f.forms.CreateForm(ctx, admin("a1", "u1"), FormInput{Name: ptr("Intake"), Fields: &refs})
	requireCode(t, err, http.StatusBadRequest)

	_, err = f.forms.CreateForm(ctx, admin("a1", "u1"), FormInput{Name: ptr("Intake"), UniversityID: ptr("u2")})
	requireCode(t, err, http.StatusForbidden)

	_, err = f.forms.CreateForm(ctx, learner("l1"), FormInput{Name: ptr("Intake"), UniversityID: ptr("u1")})
	requireCode(t, err, http.StatusForbidden)

	form, err := f.forms.CreateForm(ctx, admin("a1", "u1"), FormInput{Name: ptr("Intake"), UniversityID: ptr("u1"), Fields: &refs})
	require.NoError(t, err)
	assert.Equal(t, models.FormDraft, form.Status)
	assert.Equal(t, "Intake", form.Title)
	assert.Equal(t, uint64(1), form.Version)
	assert.True(t, form.IsActive)
	assert.Equal(t, "a1", form.CreatedBy)

	fields, err := FieldsOf(form)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "fullName", fields[0].Name)
	assert.True(t, fields[0].IsVisible)
}

func TestCreateFormRejectsBadFieldRefs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	name := f.field(t, "fullName", validation.FieldText)

	refs := []FormFieldInput{
		{FieldID: name.ID},
		{FieldID: "missing"},
		{FieldID: name.ID},
		{FieldID: name.ID, Validation: &[]validation.Rule{{Type: validation.RulePattern, Value: "("}}},
	}
	_, err := f.forms.CreateForm(ctx, superadmin(), FormInput{Name: ptr("Intake"), Fields: &refs})
	ce := requireCode(t, err, http.StatusBadRequest)
	assert.Equal(t, types.TypeValidation, ce.Type)

	errs, ok := ce.Details.([]validation.FieldError)
	require.True(t, ok)
	require.Len(t, errs, 3)
	assert.Equal(t, "fields[1]", errs[0].Field)
	assert.Equal(t, validation.RuleReference, errs[0].Rule)
	assert.Equal(t, validation.RuleUnique, errs[1].Rule)
	assert.Equal(t, "fields[3].validation", errs[2].Field)

	_, err = f.forms.CreateForm(ctx, superadmin(), FormInput{Name: ptr("Window"), StartDate: ptr(mustDate(t, "2026-05-01")), EndDate: ptr(mustDate(t, "2026-04-01"))})
	requireCode(t, err, http.StatusBadRequest)
}

func TestPublishMonotonicity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := admin("a1", "u1")
	name := f.field(t, "fullName", validation.FieldText)

	form := f.draftForm(t, actor, "u1", nil, FormFieldInput{FieldID: name.ID})

	published, err := f.forms.PublishForm(ctx, actor, form.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FormPublished, published.Status)
	assert.True(t, published.IsLaunched)
	assert.Equal(t, uint64(2), published.Version)

	_, err = f.forms.PublishForm(ctx, actor, form.ID)
	ce := requireCode(t, err, http.StatusConflict)
	assert.Equal(t, map[string]string{"currentStatus": models.FormPublished}, ce.Details)

	requireCode(t, f.forms.DeleteForm(ctx, actor, form.ID), http.StatusConflict)

	archived, err := f.forms.ArchiveForm(ctx, actor, form.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FormArchived, archived.Status)

	_, err = f.forms.ArchiveForm(ctx, actor, form.ID)
	requireCode(t, err, http.StatusConflict)
	_, err = f.forms.PublishForm(ctx, actor, form.ID)
	requireCode(t, err, http.StatusConflict)
	_, err = f.forms.UpdateForm(ctx, actor, form.ID, FormInput{Title: ptr("Again")})
	requireCode(t, err, http.StatusConflict)
}

func TestPublishRequiresVisibleField(t *testing.T) {
	f := newFixture(t)
	name := f.field(t, "fullName", validation.FieldText)

	form := f.draftForm(t, superadmin(), "", nil, FormFieldInput{FieldID: name.ID, IsVisible: ptr(false)})
	_, err := f.forms.PublishForm(context.Background(), superadmin(), form.ID)
	requireCode(t, err, http.StatusBadRequest)

	empty := f.draftForm(t, superadmin(), "", nil)
	_, err = f.forms.PublishForm(context.Background(), superadmin(), empty.ID)
	requireCode(t, err, http.StatusBadRequest)
}

func TestOneActiveFormPerCourse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := superadmin()
	name := f.field(t, "fullName", validation.FieldText)
	ref := FormFieldInput{FieldID: name.ID}

	first := f.publishedForm(t, actor, "u1", []string{"c1", "c2"}, ref)
	second := f.draftForm(t, actor, "u1", []string{"c2"}, ref)

	_, err := f.forms.PublishForm(ctx, actor, second.ID)
	requireCode(t, err, http.StatusConflict)

	_, err = f.forms.UpdateForm(ctx, actor, first.ID, FormInput{IsActive: ptr(false)})
	require.NoError(t, err)
	_, err = f.forms.PublishForm(ctx, actor, second.ID)
	require.NoError(t, err)

	_, err = f.forms.UpdateForm(ctx, actor, first.ID, FormInput{IsActive: ptr(true)})
	requireCode(t, err, http.StatusConflict)

	byCourse, err := f.forms.GetFormByCourseID(ctx, "c2")
	require.NoError(t, err)
	require.NotNil(t, byCourse)
	assert.Equal(t, second.ID, byCourse.ID)

	byCourse, err = f.forms.GetFormByCourseID(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, byCourse)
}

func TestUpdateFormVersionCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := superadmin()
	name := f.field(t, "fullName", validation.FieldText)
	email := f.field(t, "email", validation.FieldEmail)

	form := f.draftForm(t, actor, "u1", []string{"c1"}, FormFieldInput{FieldID: name.ID})

	updated, err := f.forms.UpdateForm(ctx, actor, form.ID, FormInput{
		Title:     ptr("Autumn intake"),
		Fields:    &[]FormFieldInput{{FieldID: name.ID}, {FieldID: email.ID, IsRequired: ptr(true), CustomLabel: "Contact email"}},
		CourseIDs: ptr(types.FlexList[string]{"c3"}),
		Version:   types.FlexUint64(1),
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), updated.Version)
	assert.Equal(t, "Autumn intake", updated.Title)
	assert.Equal(t, []string{"c3"}, updated.CourseIDs)

	fields, err := FieldsOf(updated)
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "Contact email", fields[1].DisplayLabel())

	_, err = f.forms.UpdateForm(ctx, actor, form.ID, FormInput{Title: ptr("Stale"), Version: types.FlexUint64(1)})
	ce := requireCode(t, err, http.StatusConflict)
	assert.Equal(t, types.TypeVersion, ce.Type)

	_, err = f.forms.PublishForm(ctx, actor, form.ID)
	require.NoError(t, err)
	_, err = f.forms.UpdateForm(ctx, actor, form.ID, FormInput{Fields: &[]FormFieldInput{{FieldID: name.ID}}})
	requireCode(t, err, http.StatusConflict)

	live, err := f.forms.UpdateForm(ctx, actor, form.ID, FormInput{Description: ptr("Now open")})
	require.NoError(t, err)
	assert.Equal(t, "Now open", live.Description)
}

func TestDuplicateFormIsIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := admin("a1", "u1")
	name := f.field(t, "fullName", validation.FieldText)
	email := f.field(t, "email", validation.FieldEmail)

	src := f.publishedForm(t, actor, "u1", []string{"c1"}, FormFieldInput{FieldID: name.ID})

	dup, err := f.forms.DuplicateForm(ctx, actor, src.ID)
	require.NoError(t, err)
	assert.NotEqual(t, src.ID, dup.ID)
	assert.Equal(t, models.FormDraft, dup.Status)
	assert.False(t, dup.IsLaunched)
	assert.Equal(t, uint64(1), dup.Version)
	assert.Equal(t, src.Name+" (Copy)", dup.Name)
	assert.Equal(t, []string{"c1"}, dup.CourseIDs)

	_, err = f.forms.UpdateForm(ctx, actor, dup.ID, FormInput{Fields: &[]FormFieldInput{{FieldID: email.ID}}})
	require.NoError(t, err)

	original, err := f.forms.GetForm(ctx, actor, src.ID)
	require.NoError(t, err)
	fields, err := FieldsOf(original)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "fullName", fields[0].Name)
	assert.Equal(t, models.FormPublished, original.Status)
}

func TestFormTenantIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	name := f.field(t, "fullName", validation.FieldText)
	hidden := f.field(t, "internalNote", validation.FieldText)

	own := f.publishedForm(t, admin("a1", "u1"), "u1", nil,
		FormFieldInput{FieldID: name.ID}, FormFieldInput{FieldID: hidden.ID, IsVisible: ptr(false)})
	other := f.draftForm(t, admin("a2", "u2"), "u2", nil, FormFieldInput{FieldID: name.ID})

	_, err := f.forms.GetForm(ctx, admin("a1", "u1"), other.ID)
	requireCode(t, err, http.StatusNotFound)
	_, err = f.forms.PublishForm(ctx, admin("a1", "u1"), other.ID)
	requireCode(t, err, http.StatusNotFound)

	_, err = f.forms.GetForm(ctx, learner("l1"), other.ID)
	requireCode(t, err, http.StatusNotFound)

	view, err := f.forms.GetForm(ctx, learner("l1"), own.ID)
	require.NoError(t, err)
	fields, err := FieldsOf(view)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "fullName", fields[0].Name)

	list, err := f.forms.ListForms(ctx, admin("a1", "u1"), FormQuery{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, own.ID, list[0].ID)

	_, err = f.forms.ListForms(ctx, admin("a1", "u1"), FormQuery{UniversityID: "u2"})
	requireCode(t, err, http.StatusForbidden)
	_, err = f.forms.ListForms(ctx, admin("a0"), FormQuery{})
	requireCode(t, err, http.StatusForbidden)
	_, err = f.forms.ListForms(ctx, learner("l1"), FormQuery{})
	requireCode(t, err, http.StatusForbidden)

	all, err := f.forms.ListForms(ctx, superadmin(), FormQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	drafts, err := f.forms.ListForms(ctx, superadmin(), FormQuery{Status: models.FormDraft})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, other.ID, drafts[0].ID)
}

func TestDeleteDraftForm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form := f.draftForm(t, superadmin(), "", []string{"c9"})

	require.NoError(t, f.forms.DeleteForm(ctx, superadmin(), form.ID))
	_, err := f.forms.GetForm(ctx, superadmin(), form.ID)
	requireCode(t, err, http.StatusNotFound)

	var links int64
	require.NoError(t, f.db.Model(&models.FormCourse{}).Where("form_id = ?", form.ID).Count(&links).Error)
	assert.Zero(t, links)
}
