package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Form statuses
const (
	FormDraft     = "draft"
	FormPublished = "published"
	FormArchived  = "archived"
)

// Form is a tenant owned intake form. Fields holds the ConfiguredField snapshot list.
type Form struct {
	ID                  string       `gorm:"type:char(36);primaryKey" json:"id"`
	Name                string       `gorm:"size:255;not null;index" json:"name"`
	Title               string       `gorm:"size:255;not null" json:"title"`
	Description         string       `gorm:"type:text" json:"description,omitempty"`
	OrganizationID      *string      `gorm:"size:64;index" json:"organizationId"`
	UniversityID        *string      `gorm:"size:64;index" json:"universityId"`
	Courses             []FormCourse `gorm:"foreignKey:FormID;constraint:OnDelete:CASCADE" json:"-"`
	CourseIDs           []string     `gorm:"-" json:"courseIds"`
	Fields              JSON         `json:"fields"`
	CustomCategoryNames JSON         `json:"customCategoryNames"`
	Status              string       `gorm:"size:16;not null;index" json:"status"`
	IsLaunched          bool         `gorm:"not null" json:"isLaunched"`
	IsActive            bool         `gorm:"not null" json:"isActive"`
	StartDate           *time.Time   `json:"startDate"`
	EndDate             *time.Time   `json:"endDate"`
	Version             uint64       `gorm:"not null" json:"version,string"`
	CreatedBy           string       `gorm:"size:64" json:"createdBy"`
	CreatedAt           time.Time    `json:"createdAt"`
	UpdatedAt           time.Time    `json:"updatedAt"`
}

// FormCourse links a form to a course it serves.
type FormCourse struct {
	FormID   string `gorm:"type:char(36);primaryKey" json:"formId"`
	CourseID string `gorm:"size:64;primaryKey;index" json:"courseId"`
}

func (f *Form) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Version == 0 {
		f.Version = 1
	}
	return nil
}

// AfterFind fills CourseIDs when Courses was preloaded.
func (f *Form) AfterFind(tx *gorm.DB) error {
	if f.Courses != nil {
		f.CourseIDs = make([]string, 0, len(f.Courses))
		for _, c := range f.Courses {
			f.CourseIDs = append(f.CourseIDs, c.CourseID)
		}
	}
	return nil
}

// SetCourseIDs replaces both the association rows and the exposed id list.
func (f *Form) SetCourseIDs(ids []string) {
	f.CourseIDs = ids
	f.Courses = make([]FormCourse, 0, len(ids))
	for _, id := range ids {
		f.Courses = append(f.Courses, FormCourse{FormID: f.ID, CourseID: id})
	}
}

// AcceptsSubmissions reports whether new applications may be created at now.
func (f *Form) AcceptsSubmissions(now time.Time) bool {
	if f.Status != FormPublished || !f.IsActive {
		return false
	}
	if f.StartDate != nil && now.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && now.After(*f.EndDate) {
		return false
	}
	return true
}

// UniversityKey returns the university id or "".
func (f *Form) UniversityKey() string {
	if f.UniversityID == nil {
		return ""
	}
	return *f.UniversityID
}

// TableName overrides the table name for Form
func (Form) TableName() string {
	return "forms"
}

// TableName overrides the table name for FormCourse
func (FormCourse) TableName() string {
	return "form_courses"
}
