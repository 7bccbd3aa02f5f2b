// application_service.go
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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/localnerve/jam-build-intakedb/internal/idempotency"
	"github.com/localnerve/jam-build-intakedb/internal/lifecycle"
	"github.com/localnerve/jam-build-intakedb/internal/logger"
	"github.com/localnerve/jam-build-intakedb/internal/metrics"
	"github.com/localnerve/jam-build-intakedb/internal/models"
	"github.com/localnerve/jam-build-intakedb/internal/notify"
	"github.com/localnerve/jam-build-intakedb/internal/scope"
	"github.com/localnerve/jam-build-intakedb/internal/types"
	"github.com/localnerve/jam-build-intakedb/internal/validation"
	"gorm.io/gorm"
	"gorm.io/hints"
)

// ApplicationService stores applications and moves them through their lifecycle.
type ApplicationService struct {
	DB       *gorm.DB
	Forms    *FormService
	Store    idempotency.Store
	Notifier *notify.Dispatcher
	Log      logger.Logger
	Now      func() time.Time

	// beforeSwap runs after a transition's checks and before its conditional update.
	beforeSwap func(action lifecycle.Action)
}

func NewApplicationService(db *gorm.DB, forms *FormService, store idempotency.Store, notifier *notify.Dispatcher, log logger.Logger) *ApplicationService {
	if store == nil {
		store = idempotency.NewMemoryStore(24 * time.Hour)
	}
	return &ApplicationService{
		DB:       db,
		Forms:    forms,
		Store:    store,
		Notifier: notifier,
		Log:      log,
		Now:      time.Now,
	}
}

// CreateApplicationInput is the body of POST /applications.
type CreateApplicationInput struct {
	FormID          string                 `json:"formId"`
	CourseID        string                 `json:"courseId"`
	FormData        map[string]interface{} `json:"formData"`
	Submit          bool                   `json:"submit"`
	SubmissionToken string                 `json:"submissionToken"`
}

// ReviewInput is the body of POST /applications/:id/review.
type ReviewInput struct {
	Status      string             `json:"status"`
	Notes       *string            `json:"notes"`
	Stage       *string            `json:"stage"`
	StageScores map[string]float64 `json:"stageScores"`
	MatchScore  *float64           `json:"matchScore"`
}

// ApplicationQuery filters ListApplications.
type ApplicationQuery struct {
	UniversityID string
	FormID       string
	Status       string
	Search       string
	Page         Page
}

// ApplicationList is one page of applications plus the total match count.
type ApplicationList struct {
	Items []models.Application `json:"items"`
	Total int64                `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}

func (s *ApplicationService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// applicantInfo derives the denormalized contact columns from the payload.
func applicantInfo(fields []validation.ConfiguredField, payload validation.Payload) (name, email, phone string) {
	text := func(key string) string {
		if v, ok := payload[key]; ok && v.Kind == validation.KindString {
			return strings.TrimSpace(v.Str)
		}
		return ""
	}

	for _, key := range []string{"fullName", "name", "applicantName"} {
		if name = text(key); name != "" {
			break
		}
	}
	if name == "" {
		name = strings.TrimSpace(text("firstName") + " " + text("lastName"))
	}

	for _, key := range []string{"email", "applicantEmail", "emailAddress"} {
		if email = text(key); email != "" {
			break
		}
	}
	for _, f := range fields {
		if email == "" && f.Type == validation.FieldEmail {
			email = text(f.Name)
		}
		if phone == "" && f.Type == validation.FieldTel {
			phone = text(f.Name)
		}
	}
	return name, email, phone
}

// attachmentsOf collects every file reference submitted through file fields.
func attachmentsOf(fields []validation.ConfiguredField, payload validation.Payload) []validation.FileRef {
	refs := make([]validation.FileRef, 0)
	for _, f := range fields {
		if f.Type != validation.FieldFile {
			continue
		}
		if v, ok := payload[f.Name]; ok && v.Kind == validation.KindFile {
			refs = append(refs, v.Files...)
		}
	}
	return refs
}

// checkPayload validates formData against the form and returns the parsed payload.
func checkPayload(fields []validation.ConfiguredField, raw map[string]interface{}, mode validation.Mode) (validation.Payload, error) {
	payload := validation.PayloadFromMap(raw)
	res := validation.Validate(fields, payload, mode)
	if !res.Valid {
		metrics.ValidationFailures.WithLabelValues(mode.String()).Inc()
		return nil, types.ValidationError("form data failed validation", res.Errors)
	}
	return payload, nil
}

// applyPayload writes formData and the columns derived from it onto app.
func applyPayload(app *models.Application, fields []validation.ConfiguredField, raw map[string]interface{}, payload validation.Payload) error {
	if raw == nil {
		raw = map[string]interface{}{}
	}
	data, err := models.NewJSON(raw)
	if err != nil {
		return types.BadRequestError("formData is not valid JSON")
	}
	app.FormData = data
	app.ApplicantName, app.ApplicantEmail, app.ApplicantPhone = applicantInfo(fields, payload)
	app.Attachments = models.MustJSON(attachmentsOf(fields, payload))
	return nil
}

func (s *ApplicationService) findByToken(ctx context.Context, applicantID, token string) (*models.Application, error) {
	var app models.Application
	err := quiet(s.DB).WithContext(ctx).
		Where("applicant_id = ? AND submission_token = ?", applicantID, token).
		Take(&app).Error
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by submission token: %w", err)
	}
	return &app, nil
}

// CreateApplication stores a draft, or a submitted application when in.Submit is set.
// A repeated submission token from the same applicant returns the first record and
// replayed=true.
func (s *ApplicationService) CreateApplication(ctx context.Context, actor *scope.Actor, in CreateApplicationInput) (app *models.Application, replayed bool, err error) {
	if actor == nil {
		return nil, false, types.UnauthorizedError("authentication required")
	}
	if strings.TrimSpace(in.FormID) == "" {
		return nil, false, types.BadRequestError("formId is required")
	}
	token := strings.TrimSpace(in.SubmissionToken)

	if token != "" {
		prior, ferr := s.findByToken(ctx, actor.UserID, token)
		if ferr != nil {
			return nil, false, ferr
		}
		if prior != nil {
			metrics.IdempotentReplays.Inc()
			return prior, true, nil
		}

		key := actor.UserID + ":" + token
		existingID, reserved, rerr := s.Store.Reserve(ctx, key)
		switch {
		case errors.Is(rerr, idempotency.ErrInFlight):
			return nil, false, types.ConflictError("a submission with this token is already in progress", "")
		case rerr != nil:
			return nil, false, fmt.Errorf("reserve submission token: %w", rerr)
		case !reserved:
			prior, lerr := s.load(ctx, existingID)
			if lerr != nil {
				return nil, false, lerr
			}
			metrics.IdempotentReplays.Inc()
			return prior, true, nil
		}
		defer func() {
			if err != nil {
				if rerr := s.Store.Release(context.WithoutCancel(ctx), key); rerr != nil {
					s.Log.WithError(rerr).Warn("release submission token", map[string]interface{}{"key": key})
				}
				return
			}
			if cerr := s.Store.Complete(context.WithoutCancel(ctx), key, app.ID); cerr != nil {
				s.Log.WithError(cerr).Warn("complete submission token", map[string]interface{}{"key": key})
			}
		}()
	}

	form, err := s.Forms.load(ctx, s.DB, in.FormID)
	if err != nil {
		return nil, false, err
	}
	if form.Status != models.FormPublished {
		return nil, false, types.NotFoundError("form not found")
	}
	now := s.now()
	if !form.AcceptsSubmissions(now) {
		return nil, false, types.ConflictError("form is not accepting submissions", "")
	}

	courseID := strings.TrimSpace(in.CourseID)
	if courseID != "" && !containsString(form.CourseIDs, courseID) {
		return nil, false, types.BadRequestError(fmt.Sprintf("form does not serve course %q", courseID))
	}
	if courseID == "" && len(form.CourseIDs) == 1 {
		courseID = form.CourseIDs[0]
	}

	fields, err := FieldsOf(form)
	if err != nil {
		return nil, false, err
	}
	mode := validation.Lenient
	status := lifecycle.Draft
	if in.Submit {
		mode = validation.Strict
		status = lifecycle.Submitted
	}
	payload, err := checkPayload(fields, in.FormData, mode)
	if err != nil {
		return nil, false, err
	}

	app = &models.Application{
		FormID:          form.ID,
		CourseID:        strPtr(courseID),
		UniversityID:    form.UniversityID,
		ApplicantID:     actor.UserID,
		SubmissionToken: strPtr(token),
		Status:          string(status),
		StageScores:     models.MustJSON(map[string]float64{}),
	}
	if err := applyPayload(app, fields, in.FormData, payload); err != nil {
		return nil, false, err
	}
	if in.Submit {
		app.SubmittedAt = &now
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(app).Error; err != nil {
			return err
		}
		return tx.Create(&models.ApplicationStatusHistory{
			ApplicationID: app.ID,
			ToStatus:      app.Status,
			ChangedBy:     actor.UserID,
		}).Error
	})
	if err != nil {
		if token != "" && isDuplicate(err) {
			prior, ferr := s.findByToken(ctx, actor.UserID, token)
			if ferr == nil && prior != nil {
				metrics.IdempotentReplays.Inc()
				return prior, true, nil
			}
		}
		return nil, false, fmt.Errorf("create application: %w", err)
	}

	metrics.ApplicationTransitions.WithLabelValues("", app.Status).Inc()
	s.Log.Info("application created", map[string]interface{}{
		"applicationId": app.ID,
		"formId":        app.FormID,
		"status":        app.Status,
	})
	if status == lifecycle.Submitted {
		s.notify(app, "", actor.UserID, now)
	}
	return app, false, nil
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func (s *ApplicationService) load(ctx context.Context, id string) (*models.Application, error) {
	var app models.Application
	if err := quiet(s.DB).WithContext(ctx).First(&app, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, types.NotFoundError("application not found")
		}
		return nil, fmt.Errorf("load application: %w", err)
	}
	return &app, nil
}

func owned(app *models.Application) scope.Owned {
	return scope.Owned{UniversityID: app.UniversityKey(), ApplicantID: app.ApplicantID}
}

// loadVisible loads an application the actor may see. Anything else reads as missing.
func (s *ApplicationService) loadVisible(ctx context.Context, actor *scope.Actor, id string) (*models.Application, error) {
	app, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !scope.CanAccess(actor, owned(app)) {
		return nil, types.NotFoundError("application not found")
	}
	return app, nil
}

// loadOwned loads an application owned by actor.
func (s *ApplicationService) loadOwned(ctx context.Context, actor *scope.Actor, id string) (*models.Application, error) {
	app, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if app.ApplicantID != actor.UserID {
		return nil, types.ForbiddenError("only the applicant may change this application")
	}
	return app, nil
}

// GetApplication returns one application visible to actor.
func (s *ApplicationService) GetApplication(ctx context.Context, actor *scope.Actor, id string) (*models.Application, error) {
	return s.loadVisible(ctx, actor, id)
}

// transitionError maps a refused lifecycle step onto the error taxonomy.
func transitionError(err error, current lifecycle.Status) error {
	if errors.Is(err, lifecycle.ErrInvalidReviewStatus) {
		return types.BadRequestError(err.Error())
	}
	return types.ConflictError(err.Error(), string(current))
}

// swap runs the conditional update and records history in one transaction. The update
// matches the status and revision read by the caller, so neither a concurrent transition
// nor a concurrent draft edit can slip between the caller's checks and the write.
// A lost race re-reads the row and reports its actual status.
func (s *ApplicationService) swap(ctx context.Context, app *models.Application, action lifecycle.Action, to lifecycle.Status, updates map[string]interface{}, changedBy string, notes *string) error {
	if s.beforeSwap != nil {
		s.beforeSwap(action)
	}
	from := app.Status
	updates["status"] = string(to)
	updates["revision"] = gorm.Expr("revision + 1")

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Application{}).
			Clauses(hints.CommentBefore("update", "intakedb:"+string(action))).
			Where("id = ? AND status = ? AND revision = ?", app.ID, from, app.Revision).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("%s application: %w", action, res.Error)
		}
		if res.RowsAffected == 0 {
			var current models.Application
			if err := quiet(tx).Select("status").First(&current, "id = ?", app.ID).Error; err != nil {
				if isNotFound(err) {
					return types.NotFoundError("application not found")
				}
				return err
			}
			metrics.TransitionConflicts.WithLabelValues(string(action)).Inc()
			if current.Status == from {
				return types.ConflictError("application changed during the request, reload and retry", current.Status)
			}
			return types.ConflictError(fmt.Sprintf("application is %s", current.Status), current.Status)
		}
		if string(to) == from {
			return nil
		}
		return tx.Create(&models.ApplicationStatusHistory{
			ApplicationID: app.ID,
			FromStatus:    from,
			ToStatus:      string(to),
			ChangedBy:     changedBy,
			Notes:         notes,
		}).Error
	})
	if err != nil {
		return err
	}

	if string(to) != from {
		metrics.ApplicationTransitions.WithLabelValues(from, string(to)).Inc()
		s.Log.Info("application transition", map[string]interface{}{
			"applicationId": app.ID,
			"from":          from,
			"to":            string(to),
			"by":            changedBy,
		})
	}
	return nil
}

func (s *ApplicationService) notify(app *models.Application, from, by string, at time.Time) {
	s.Notifier.Dispatch(notify.StatusChange{
		ApplicationID:  app.ID,
		FormID:         app.FormID,
		ApplicantID:    app.ApplicantID,
		ApplicantName:  app.ApplicantName,
		ApplicantEmail: app.ApplicantEmail,
		From:           from,
		To:             app.Status,
		ChangedBy:      by,
		At:             at,
	}, nil)
}

// UpdateDraft replaces the payload of a draft application.
func (s *ApplicationService) UpdateDraft(ctx context.Context, actor *scope.Actor, id string, formData map[string]interface{}) (*models.Application, error) {
	app, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.CanEdit(lifecycle.Status(app.Status)); err != nil {
		return nil, transitionError(err, lifecycle.Status(app.Status))
	}
	form, err := s.Forms.load(ctx, s.DB, app.FormID)
	if err != nil {
		return nil, err
	}
	fields, err := FieldsOf(form)
	if err != nil {
		return nil, err
	}
	payload, err := checkPayload(fields, formData, validation.Lenient)
	if err != nil {
		return nil, err
	}
	if err := applyPayload(app, fields, formData, payload); err != nil {
		return nil, err
	}

	err = s.swap(ctx, app, "edit", lifecycle.Draft, map[string]interface{}{
		"form_data":       app.FormData,
		"applicant_name":  app.ApplicantName,
		"applicant_email": app.ApplicantEmail,
		"applicant_phone": app.ApplicantPhone,
		"attachments":     app.Attachments,
	}, actor.UserID, nil)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// SubmitApplication validates a draft strictly and submits it.
func (s *ApplicationService) SubmitApplication(ctx context.Context, actor *scope.Actor, id string) (*models.Application, error) {
	app, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	from := lifecycle.Status(app.Status)
	to, err := lifecycle.Next(from, lifecycle.ActionSubmit, "")
	if err != nil {
		return nil, transitionError(err, from)
	}

	form, err := s.Forms.load(ctx, s.DB, app.FormID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !form.AcceptsSubmissions(now) {
		return nil, types.ConflictError("form is not accepting submissions", app.Status)
	}
	fields, err := FieldsOf(form)
	if err != nil {
		return nil, err
	}
	var raw map[string]interface{}
	if err := app.FormData.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode form data: %w", err)
	}
	if _, err := checkPayload(fields, raw, validation.Strict); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if app.SubmittedAt == nil {
		updates["submitted_at"] = now
	}
	if err := s.swap(ctx, app, lifecycle.ActionSubmit, to, updates, actor.UserID, nil); err != nil {
		return nil, err
	}
	app, err = s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notify(app, string(from), actor.UserID, now)
	return app, nil
}

// WithdrawApplication withdraws a draft or submitted application, by its owner or a scoped admin.
func (s *ApplicationService) WithdrawApplication(ctx context.Context, actor *scope.Actor, id string) (*models.Application, error) {
	app, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	from := lifecycle.Status(app.Status)
	to, err := lifecycle.Next(from, lifecycle.ActionWithdraw, "")
	if err != nil {
		return nil, transitionError(err, from)
	}
	if err := s.swap(ctx, app, lifecycle.ActionWithdraw, to, map[string]interface{}{}, actor.UserID, nil); err != nil {
		return nil, err
	}
	app, err = s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notify(app, string(from), actor.UserID, s.now())
	return app, nil
}

// ReviewApplication decides a submitted application, or records stage progress when
// in.Status is submitted.
func (s *ApplicationService) ReviewApplication(ctx context.Context, actor *scope.Actor, id string, in ReviewInput) (*models.Application, error) {
	if actor == nil || !actor.IsStaff() {
		return nil, types.ForbiddenError("insufficient role")
	}
	app, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	from := lifecycle.Status(app.Status)
	target := lifecycle.Status(strings.ToLower(strings.TrimSpace(in.Status)))
	to, err := lifecycle.Next(from, lifecycle.ActionReview, target)
	if err != nil {
		return nil, transitionError(err, from)
	}

	updates := map[string]interface{}{}
	if in.Stage != nil {
		updates["stage"] = strPtr(strings.TrimSpace(*in.Stage))
	}
	if in.StageScores != nil {
		updates["stage_scores"] = models.MustJSON(in.StageScores)
	}
	if in.MatchScore != nil {
		updates["match_score"] = *in.MatchScore
	}
	if in.Notes != nil {
		updates["review_notes"] = *in.Notes
	}
	now := s.now()
	if to != from {
		updates["reviewed_by"] = actor.UserID
		updates["reviewed_at"] = now
	}

	if err := s.swap(ctx, app, lifecycle.ActionReview, to, updates, actor.UserID, in.Notes); err != nil {
		return nil, err
	}
	app, err = s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if to != from {
		s.notify(app, string(from), actor.UserID, now)
	}
	return app, nil
}

// DeleteApplication hard deletes an application and its history.
func (s *ApplicationService) DeleteApplication(ctx context.Context, actor *scope.Actor, id string) error {
	if actor == nil || !actor.IsStaff() {
		return types.ForbiddenError("insufficient role")
	}
	app, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return err
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("application_id = ?", app.ID).Delete(&models.ApplicationStatusHistory{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", app.ID).Delete(&models.Application{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.NotFoundError("application not found")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.Log.Info("application deleted", map[string]interface{}{"applicationId": id, "by": actor.UserID})
	return nil
}

// ListApplications returns a page of applications inside the actor's scope.
func (s *ApplicationService) ListApplications(ctx context.Context, actor *scope.Actor, q ApplicationQuery) (*ApplicationList, error) {
	filter, err := scope.ScopeList(actor, q.UniversityID)
	if err != nil {
		return nil, err
	}

	query := s.DB.WithContext(ctx).Model(&models.Application{})
	if filter.UniversityID != "" {
		query = query.Where("university_id = ?", filter.UniversityID)
	}
	if filter.ApplicantID != "" {
		query = query.Where("applicant_id = ?", filter.ApplicantID)
	}
	if q.FormID != "" {
		query = query.Where("form_id = ?", q.FormID)
	}
	if q.Status != "" {
		if !lifecycle.Status(q.Status).Valid() {
			return nil, types.BadRequestError(fmt.Sprintf("unknown application status %q, expected one of %v", q.Status, lifecycle.Statuses()))
		}
		query = query.Where("status = ?", q.Status)
	}
	if search := strings.ToLower(strings.TrimSpace(q.Search)); search != "" {
		like := "%" + search + "%"
		query = query.Where("LOWER(applicant_name) LIKE ? OR LOWER(applicant_email) LIKE ?", like, like)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count applications: %w", err)
	}

	page := q.Page.normalize()
	items := make([]models.Application, 0)
	err = query.
		Clauses(hints.CommentBefore("select", "intakedb:list-applications")).
		Order("created_at DESC").Order("id ASC").
		Limit(page.Limit).Offset(page.offset()).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}

	return &ApplicationList{Items: items, Total: total, Page: page.Page, Limit: page.Limit}, nil
}

// History returns the status changes of an application, oldest first.
func (s *ApplicationService) History(ctx context.Context, actor *scope.Actor, id string) ([]models.ApplicationStatusHistory, error) {
	if _, err := s.loadVisible(ctx, actor, id); err != nil {
		return nil, err
	}
	rows := make([]models.ApplicationStatusHistory, 0)
	err := s.DB.WithContext(ctx).
		Where("application_id = ?", id).
		Order("created_at ASC").Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("application history: %w", err)
	}
	return rows, nil
}
