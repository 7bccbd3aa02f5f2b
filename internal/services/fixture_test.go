package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/localnerve/jam-build-intakedb/internal/database"
	"github.com/localnerve/jam-build-intakedb/internal/idempotency"
	"github.com/localnerve/jam-build-intakedb/internal/logger"
	"github.com/localnerve/jam-build-intakedb/internal/testutil"
	"github.com/localnerve/jam-build-intakedb/internal/models"
	"github.com/localnerve/jam-build-intakedb/internal/notify"
	"github.com/localnerve/jam-build-intakedb/internal/scope"
	"github.com/localnerve/jam-build-intakedb/internal/types"
	"github.com/localnerve/jam-build-intakedb/internal/validation"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fixture struct {
	db      *gorm.DB
	catalog *CatalogService
	forms   *FormService
	apps    *ApplicationService
	store   idempotency.Store
}

// setupTestDB opens a private shared-cache in-memory database on a single connection.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, setupTestDB(t), idempotency.NewMemoryStore(time.Hour))
}

func newFixtureWith(t *testing.T, db *gorm.DB, store idempotency.Store) *fixture {
	log := testutil.NewLogger(t)
	catalog := NewCatalogService(db, log)
	forms := NewFormService(db, catalog, log)
	dispatcher := &notify.Dispatcher{Notifier: &notify.LogNotifier{Log: logger.NewNoOpLogger()}, Log: logger.NewNoOpLogger()}
	apps := NewApplicationService(db, forms, store, dispatcher, log)

	return &fixture{db: db, catalog: catalog, forms: forms, apps: apps, store: store}
}

func superadmin() *scope.Actor {
	return &scope.Actor{UserID: "root", Role: scope.Superadmin{}}
}

func admin(id string, universities ...string) *scope.Actor {
	return &scope.Actor{UserID: id, Role: scope.Admin{UniversityIDs: universities}}
}

func learner(id string) *scope.Actor {
	return &scope.Actor{UserID: id, Role: scope.Learner{}}
}

func ptr[T any](v T) *T {
	return &v
}

func (f *fixture) category(t *testing.T, name string) *models.Category {
	t.Helper()
	cat, err := f.catalog.CreateCategory(context.Background(), CategoryInput{Name: ptr(name)})
	require.NoError(t, err)
	return cat
}

// field creates a catalog field in a fresh category.
func (f *fixture) field(t *testing.T, name string, fieldType validation.FieldType, rules ...validation.Rule) *models.Field {
	t.Helper()
	cat := f.category(t, "cat-"+name)
	in := FieldInput{
		Name:       ptr(name),
		Label:      ptr(name),
		Type:       ptr(string(fieldType)),
		CategoryID: ptr(cat.ID),
	}
	if len(rules) > 0 {
		in.Validation = &rules
	}
	fld, err := f.catalog.CreateField(context.Background(), in)
	require.NoError(t, err)
	return fld
}

func (f *fixture) draftForm(t *testing.T, actor *scope.Actor, university string, courses []string, refs ...FormFieldInput) *models.Form {
	t.Helper()
	list := types.FlexList[string](courses)
	form, err := f.forms.CreateForm(context.Background(), actor, FormInput{
		Name:         ptr("Intake " + uuid.NewString()[:8]),
		UniversityID: ptr(university),
		CourseIDs:    &list,
		Fields:       &refs,
	})
	require.NoError(t, err)
	return form
}

func (f *fixture) publishedForm(t *testing.T, actor *scope.Actor, university string, courses []string, refs ...FormFieldInput) *models.Form {
	t.Helper()
	form := f.draftForm(t, actor, university, courses, refs...)
	published, err := f.forms.PublishForm(context.Background(), actor, form.ID)
	require.NoError(t, err)
	return published
}

func requireCode(t *testing.T, err error, code int) *types.CustomError {
	t.Helper()
	require.Error(t, err)
	ce, ok := types.AsCustomError(err)
	require.True(t, ok, "expected a CustomError, got %v", err)
	require.Equal(t, code, ce.Code, ce.Message)
	return ce
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}
