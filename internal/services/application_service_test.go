// application_service_test.go
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
	"net/http"
	"sync"
	"testing"

	"github.com/localnerve/jam-build-intakedb/internal/lifecycle"
	"github.com/localnerve/jam-build-intakedb/internal/models"
	"github.com/localnerve/jam-build-intakedb/internal/types"
	"github.com/localnerve/jam-build-intakedb/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// intakeForm publishes a university u1 form for course c1 with name, email, phone and cv fields.
func (f *fixture) intakeForm(t *testing.T) *models.Form {
	t.Helper()
	name := f.field(t, "fullName", validation.FieldText, validation.Rule{Type: validation.RuleMinLength, Value: float64(2)})
	email := f.field(t, "email", validation.FieldEmail, validation.Rule{Type: validation.RuleEmail})
	phone := f.field(t, "phone", validation.FieldTel)
	cv := f.field(t, "cv", validation.FieldFile)
	return f.publishedForm(t, admin("a1", "u1"), "u1", []string{"c1"},
		FormFieldInput{FieldID: name.ID, IsRequired: ptr(true)},
		FormFieldInput{FieldID: email.ID, IsRequired: ptr(true)},
		FormFieldInput{FieldID: phone.ID},
		FormFieldInput{FieldID: cv.ID},
	)
}

func fieldErrorsOf(t *testing.T, err error) []validation.FieldError {
	t.Helper()
	ce := requireCode(t, err, http.StatusBadRequest)
	require.Equal(t, types.TypeValidation, ce.Type)
	errs, ok := ce.Details.([]validation.FieldError)
	require.True(t, ok)
	return errs
}

func TestCreateApplicationEmailScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form := f.intakeForm(t)
	actor := learner("l1")

	_, _, err := f.apps.CreateApplication(ctx, actor, CreateApplicationInput{
		FormID:   form.ID,
		FormData: map[string]interface{}{"email": "not-an-email"},
	})
	errs := fieldErrorsOf(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "email", errs[0].Field)
	assert.Equal(t, validation.RuleEmail, errs[0].Rule)

	_, _, err = f.apps.CreateApplication(ctx, actor, CreateApplicationInput{
		FormID:   form.ID,
		FormData: map[string]interface{}{"fullName": "Ada Lovelace"},
		Submit:   true,
	})
	errs = fieldErrorsOf(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "email", errs[0].Field)
	assert.Equal(t, validation.RuleRequired, errs[0].Rule)

	app, replayed, err := f.apps.CreateApplication(ctx, actor, CreateApplicationInput{
		FormID:   form.ID,
		FormData: map[string]interface{}{"email": "a@b.com"},
	})
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, string(lifecycle.Draft), app.Status)
	assert.Equal(t, "a@b.com", app.ApplicantEmail)
	assert.Equal(t, "l1", app.ApplicantID)
	assert.Equal(t, "u1", app.UniversityKey())
	require.NotNil(t, app.CourseID)
	assert.Equal(t, "c1", *app.CourseID)
	assert.Nil(t, app.SubmittedAt)
}

func TestCreateApplicationFormChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form := f.intakeForm(t)
	actor := learner("l1")

	_, _, err := f.apps.CreateApplication(ctx, actor, CreateApplicationInput{FormID: "missing"})
	requireCode(t, err, http.StatusNotFound)

	_, _, err = f.apps.CreateApplication(ctx, actor, CreateApplicationInput{FormID: form.ID, CourseID: "c7"})
	requireCode(t, err, http.StatusBadRequest)

	_, err = f.forms.UpdateForm(ctx, admin("a1", "u1"), form.ID, FormInput{IsActive: ptr(false)})
	require.NoError(t, err)
	_, _, err = f.apps.CreateApplication(ctx, actor, CreateApplicationInput{FormID: form.ID})
	requireCode(t, err, http.StatusConflict)

	draft := f.draftForm(t, superadmin(), "u1", nil)
	_, _, err = f.apps.CreateApplication(ctx, actor, CreateApplicationInput{FormID: draft.ID})
	requireCode(t, err, http.StatusNotFound)
}

func TestDraftLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form := f.intakeForm(t)
	owner := learner("l1")

	app, _, err := f.apps.CreateApplication(ctx, owner, CreateApplicationInput{
		FormID:   form.ID,
		FormData: map[string]interface{}{"fullName": "Ada Lovelace"},
	})
	require.NoError(t, err)

	_, err = f.apps.SubmitApplication(ctx, owner, app.ID)
	errs := fieldErrorsOf(t, err)
	assert.Equal(t, "email", errs[0].Field)

	_, err = f.apps.UpdateDraft(ctx, learner("l2"), app.ID, map[string]interface{}{"email": "x@y.org"})
	requireCode(t, err, http.StatusNotFound)

	updated, err := f.apps.UpdateDraft(ctx, owner, app.ID, map[string]interface{}{
		"fullName": "Ada Lovelace",
		"email":    "ada@example.org",
		"phone":    "+44 20 7946 0000",
		"cv":       map[string]interface{}{"id": "f-1", "name": "cv.pdf", "mimeType": "application/pdf"},
		"unknown":  "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", updated.ApplicantName)
	assert.Equal(t, "ada@example.org", updated.ApplicantEmail)
	assert.Equal(t, "+44 20 7946 0000", updated.ApplicantPhone)
	var files []validation.FileRef
	require.NoError(t, updated.Attachments.Decode(&files))
	require.Len(t, files, 1)
	assert.Equal(t, "f-1", files[0].ID)

	submitted, err := f.apps.SubmitApplication(ctx, owner, app.ID)
	require.NoError(t, err)
	assert.Equal(t, string(lifecycle.Submitted), submitted.Status)
	require.NotNil(t, submitted.SubmittedAt)
	firstSubmit := *submitted.SubmittedAt

	_, err = f.apps.SubmitApplication(ctx, owner, app.ID)
	ce := requireCode(t, err, http.StatusConflict)
	assert.Equal(t, map[string]string{"currentStatus": "submitted"}, ce.Details)

	_, err = f.apps.UpdateDraft(ctx, owner, app.ID, map[string]interface{}{"fullName": "Changed"})
	requireCode(t, err, http.StatusConflict)

	again, err := f.apps.GetApplication(ctx, owner, app.ID)
	require.NoError(t, err)
	assert.True(t, firstSubmit.Equal(*again.SubmittedAt))

	history, err := f.apps.History(ctx, owner, app.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "", history[0].FromStatus)
	assert.Equal(t, "draft", history[0].ToStatus)
	assert.Equal(t, "draft", history[1].FromStatus)
	assert.Equal(t, "submitted", history[1].ToStatus)
}

func TestTerminalStatesRejectTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form := f.intakeForm(t)
	owner := learner("l1")
	reviewer := admin("a1", "u1")
	data := map[string]interface{}{"fullName": "Ada Lovelace", "email": "ada@example.org"}

	create := func() *models.Application {
		app, _, err := f.apps.CreateApplication(ctx, owner, CreateApplicationInput{FormID: form.ID, FormData: data, Submit: true})
		require.NoError(t, err)
		return app
	}

	accepted := create()
	_, err := f.apps.ReviewApplication(ctx, reviewer, accepted.ID, ReviewInput{Status: "accepted", Notes: ptr("strong")})
	require.NoError(t, err)

	rejected := create()
	_, err = f.apps.ReviewApplication(ctx, reviewer, rejected.ID, ReviewInput{Status: "rejected"})
	require.NoError(t, err)

	withdrawn := create()
	_, err = f.apps.WithdrawApplication(ctx, owner, withdrawn.ID)
	require.NoError(t, err)

	for _, app := range []*models.Application{accepted, rejected, withdrawn} {
		before, err := f.apps.GetApplication(ctx, owner, app.ID)
		require.NoError(t, err)

		_, err = f.apps.SubmitApplication(ctx, owner, app.ID)
		requireCode(t, err, http.StatusConflict)
		_, err = f.apps.WithdrawApplication(ctx, owner, app.ID)
		requireCode(t, err, http.StatusConflict)
		_, err = f.apps.ReviewApplication(ctx, reviewer, app.ID, ReviewInput{Status: "accepted"})
		requireCode(t, err, http.StatusConflict)

		after, err := f.apps.GetApplication(ctx, owner, app.ID)
		require.NoError(t, err)
		assert.Equal(t, before.Status, after.Status)
	}
}

func TestReviewApplication(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form := f.intakeForm(t)
	owner := learner("l1")
	reviewer := admin("a1", "u1")

	app, _, err := f.apps.CreateApplication(ctx, owner, CreateApplicationInput{
		FormID:   form.ID,
		FormData: map[string]interface{}{"fullName": "Ada Lovelace", "email": "ada@example.org"},
	})
	require.NoError(t, err)

	_, err = f.apps.ReviewApplication(ctx, reviewer, app.ID, ReviewInput{Status: "accepted"})
	requireCode(t, err, http.StatusConflict)

	_, err = f.apps.ReviewApplication(ctx, owner, app.ID, ReviewInput{Status: "accepted"})
	requireCode(t, err, http.StatusForbidden)

	_, err = f.apps.SubmitApplication(ctx, owner, app.ID)
	require.NoError(t, err)

	_, err = f.apps.ReviewApplication(ctx, reviewer, app.ID, ReviewInput{Status: "draft"})
	requireCode(t, err, http.StatusBadRequest)

	_, err = f.apps.ReviewApplication(ctx, admin("a2", "u2"), app.ID, ReviewInput{Status: "accepted"})
	requireCode(t, err, http.StatusNotFound)

	staged, err := f.apps.ReviewApplication(ctx, reviewer, app.ID, ReviewInput{
		Status:      "submitted",
		Stage:       ptr("interview"),
		StageScores: map[string]float64{"screening": 8.5},
		MatchScore:  ptr(0.75),
	})
	require.NoError(t, err)
	assert.Equal(t, "submitted", staged.Status)
	require.NotNil(t, staged.Stage)
	assert.Equal(t, "interview", *staged.Stage)
	require.NotNil(t, staged.MatchScore)
	assert.InDelta(t, 0.75, *staged.MatchScore, 1e-9)
	assert.Nil(t, staged.ReviewedBy)

	decided, err := f.apps.ReviewApplication(ctx, reviewer, app.ID, ReviewInput{Status: "Rejected", Notes: ptr("incomplete")})
	require.NoError(t, err)
	assert.Equal(t, "rejected", decided.Status)
	require.NotNil(t, decided.ReviewedBy)
	assert.Equal(t, "a1", *decided.ReviewedBy)
	require.NotNil(t, decided.ReviewNotes)
	assert.Equal(t, "incomplete", *decided.ReviewNotes)
	assert.NotNil(t, decided.ReviewedAt)

	history, err := f.apps.History(ctx, reviewer, app.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "rejected", history[2].ToStatus)
	require.NotNil(t, history[2].Notes)
	assert.Equal(t, "incomplete", *history[2].Notes)
}

func TestConcurrentWithdrawRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form := f.intakeForm(t)
	owner := learner("l1")

	app, _, err := f.apps.CreateApplication(ctx, owner, CreateApplicationInput{
		FormID:   form.ID,
		FormData: map[string]interface{}{"fullName": "Ada Lovelace", "email": "ada@example.org"},
		Submit:   true,
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.apps.WithdrawApplication(ctx, owner, app.ID)
		}(i)
	}
	wg.Wait()

	ok, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case types.HasCode(err, http.StatusConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)

	final, err := f.apps.GetApplication(ctx, owner, app.ID)
	require.NoError(t, err)
	assert.Equal(t, "withdrawn", final.Status)

	history, err := f.apps.History(ctx, owner, app.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func currentStatusOf(t *testing.T, err error) string {
	t.Helper()
	ce := requireCode(t, err, http.StatusConflict)
	details, ok := ce.Details.(map[string]string)
	require.True(t, ok, "conflict carries no currentStatus")
	return details["currentStatus"]
}

func TestTransitionLosesAtConditionalUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form := f.intakeForm(t)
	owner := learner("l1")

	app, _, err := f.apps.CreateApplication(ctx, owner, CreateApplicationInput{
		FormID:   form.ID,
		FormData: map[string]interface{}{"fullName": "Ada Lovelace", "email": "ada@example.org"},
		Submit:   true,
	})
	require.NoError(t, err)

	// Both withdraws pass their checks; the nested one commits first.
	var nested error
	fired := false
	f.apps.beforeSwap = func(action lifecycle.Action) {
		if fired || action != lifecycle.ActionWithdraw {
			return
		}
		fired = true
		_, nested = f.apps.WithdrawApplication(ctx, owner, app.ID)
	}

	_, err = f.apps.WithdrawApplication(ctx, owner, app.ID)
	require.True(t, fired)
	require.NoError(t, nested)
	assert.Equal(t, "withdrawn", currentStatusOf(t, err))

	history, err := f.apps.History(ctx, owner, app.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestSubmitRefusesDraftEditedAfterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form := f.intakeForm(t)
	owner := learner("l1")

	app, _, err := f.apps.CreateApplication(ctx, owner, CreateApplicationInput{
		FormID:   form.ID,
		FormData: map[string]interface{}{"fullName": "Ada Lovelace", "email": "ada@example.org"},
	})
	require.NoError(t, err)

	// The draft loses its required email after submit has validated the old payload.
	var edit error
	fired := false
	f.apps.beforeSwap = func(action lifecycle.Action) {
		if fired || action != lifecycle.ActionSubmit {
			return
		}
		fired = true
		_, edit = f.apps.UpdateDraft(ctx, owner, app.ID, map[string]interface{}{"fullName": "Ada Lovelace"})
	}

	_, err = f.apps.SubmitApplication(ctx, owner, app.ID)
	require.True(t, fired)
	require.NoError(t, edit)
	assert.Equal(t, "draft", currentStatusOf(t, err))

	final, err := f.apps.GetApplication(ctx, owner, app.ID)
	require.NoError(t, err)
	assert.Equal(t, "draft", final.Status)
	assert.Nil(t, final.SubmittedAt)
	assert.Equal(t, uint64(2), final.Revision)

	history, err := f.apps.History(ctx, owner, app.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "draft", history[0].ToStatus)

	// Submitting the edited draft now fails strict validation.
	f.apps.beforeSwap = nil
	_, err = f.apps.SubmitApplication(ctx, owner, app.ID)
	errs := fieldErrorsOf(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "email", errs[0].Field)
}

func TestReviewConflictsOnTerminalApplication(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form := f.intakeForm(t)
	reviewer := admin("a1", "u1")

	app, _, err := f.apps.CreateApplication(ctx, learner("l1"), CreateApplicationInput{
		FormID:   form.ID,
		FormData: map[string]interface{}{"fullName": "Ada Lovelace", "email": "ada@example.org"},
		Submit:   true,
	})
	require.NoError(t, err)
	_, err = f.apps.ReviewApplication(ctx, reviewer, app.ID, ReviewInput{Status: "accepted"})
	require.NoError(t, err)

	for _, status := range []string{"shortlisted", "draft", "rejected", ""} {
		_, err = f.apps.ReviewApplication(ctx, reviewer, app.ID, ReviewInput{Status: status})
		assert.Equal(t, "accepted", currentStatusOf(t, err), status)
	}
}

func TestStageReviewKeepsNotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form := f.intakeForm(t)
	reviewer := admin("a1", "u1")

	app, _, err := f.apps.CreateApplication(ctx, learner("l1"), CreateApplicationInput{
		FormID:   form.ID,
		FormData: map[string]interface{}{"fullName": "Ada Lovelace", "email": "ada@example.org"},
		Submit:   true,
	})
	require.NoError(t, err)

	staged, err := f.apps.ReviewApplication(ctx, reviewer, app.ID, ReviewInput{
		Status: "submitted",
		Stage:  ptr("interview"),
		Notes:  ptr("call scheduled"),
	})
	require.NoError(t, err)
	assert.Equal(t, "submitted", staged.Status)
	require.NotNil(t, staged.ReviewNotes)
	assert.Equal(t, "call scheduled", *staged.ReviewNotes)
	assert.Nil(t, staged.ReviewedBy)
	assert.Nil(t, staged.ReviewedAt)

	history, err := f.apps.History(ctx, reviewer, app.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestIdempotentCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form := f.intakeForm(t)
	owner := learner("l1")
	in := CreateApplicationInput{
		FormID:          form.ID,
		FormData:        map[string]interface{}{"fullName": "Ada Lovelace", "email": "ada@example.org"},
		Submit:          true,
		SubmissionToken: "tok-1",
	}

	first, replayed, err := f.apps.CreateApplication(ctx, owner, in)
	require.NoError(t, err)
	assert.False(t, replayed)

	second, replayed, err := f.apps.CreateApplication(ctx, owner, in)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, second.ID)

	// the durable index still answers once the reservation is gone
	require.NoError(t, f.store.Release(ctx, "l1:tok-1"))
	third, replayed, err := f.apps.CreateApplication(ctx, owner, in)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, third.ID)

	other, replayed, err := f.apps.CreateApplication(ctx, learner("l2"), in)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.NotEqual(t, first.ID, other.ID)

	var count int64
	require.NoError(t, f.db.Model(&models.Application{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	bad := in
	bad.SubmissionToken = "tok-2"
	bad.FormData = map[string]interface{}{}
	_, _, err = f.apps.CreateApplication(ctx, owner, bad)
	requireCode(t, err, http.StatusBadRequest)
	_, reserved, err := f.store.Reserve(ctx, "l1:tok-2")
	require.NoError(t, err)
	assert.True(t, reserved)
}

func TestListApplicationsScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form := f.intakeForm(t)
	name := f.field(t, "motivation", validation.FieldTextarea)
	otherForm := f.publishedForm(t, admin("a2", "u2"), "u2", []string{"c2"}, FormFieldInput{FieldID: name.ID})

	for i, who := range []string{"Ada Lovelace", "Grace Hopper", "Alan Turing"} {
		_, _, err := f.apps.CreateApplication(ctx, learner("l"+string(rune('1'+i))), CreateApplicationInput{
			FormID:   form.ID,
			FormData: map[string]interface{}{"fullName": who, "email": "x@example.org"},
		})
		require.NoError(t, err)
	}
	_, _, err := f.apps.CreateApplication(ctx, learner("l1"), CreateApplicationInput{FormID: otherForm.ID})
	require.NoError(t, err)

	scoped, err := f.apps.ListApplications(ctx, admin("a1", "u1"), ApplicationQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), scoped.Total)
	for _, app := range scoped.Items {
		assert.Equal(t, "u1", app.UniversityKey())
	}

	_, err = f.apps.ListApplications(ctx, admin("a1", "u1"), ApplicationQuery{UniversityID: "u2"})
	requireCode(t, err, http.StatusForbidden)

	_, err = f.apps.ListApplications(ctx, admin("a0"), ApplicationQuery{})
	requireCode(t, err, http.StatusForbidden)

	mine, err := f.apps.ListApplications(ctx, learner("l1"), ApplicationQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), mine.Total)

	found, err := f.apps.ListApplications(ctx, superadmin(), ApplicationQuery{Search: "HOPPER"})
	require.NoError(t, err)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "Grace Hopper", found.Items[0].ApplicantName)

	page, err := f.apps.ListApplications(ctx, superadmin(), ApplicationQuery{Page: Page{Page: 2, Limit: 3}})
	require.NoError(t, err)
	assert.Equal(t, int64(4), page.Total)
	assert.Len(t, page.Items, 1)

	_, err = f.apps.ListApplications(ctx, superadmin(), ApplicationQuery{Status: "pending"})

	ce := requireCode(t, err, http.StatusBadRequest)
	assert.Contains(t, ce.Message, "withdrawn")

	_, err = f.apps.GetApplication(ctx, admin("a2", "u2"), scoped.Items[0].ID)
	requireCode(t, err, http.StatusNotFound)
}

func TestDeleteApplication(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form := f.intakeForm(t)

	app, _, err := f.apps.CreateApplication(ctx, learner("l1"), CreateApplicationInput{FormID: form.ID})
	require.NoError(t, err)

	requireCode(t, f.apps.DeleteApplication(ctx, learner("l1"), app.ID), http.StatusForbidden)
	requireCode(t, f.apps.DeleteApplication(ctx, admin("a2", "u2"), app.ID), http.StatusNotFound)
	require.NoError(t, f.apps.DeleteApplication(ctx, admin("a1", "u1"), app.ID))

	_, err = f.apps.GetApplication(ctx, superadmin(), app.ID)
	requireCode(t, err, http.StatusNotFound)

	var rows int64
	require.NoError(t, f.db.Model(&models.ApplicationStatusHistory{}).Where("application_id = ?", app.ID).Count(&rows).Error)
	assert.Zero(t, rows)
}
