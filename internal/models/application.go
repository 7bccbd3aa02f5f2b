package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SubmissionTokenIndex is the unique (applicant_id, submission_token) index.
// database.AutoMigrate creates it so each dialect can skip NULL tokens.
const SubmissionTokenIndex = "idx_applications_submission_token"

// Application is one applicant's submission against a form.
// Revision increases with every committed change and guards conditional updates.
type Application struct {
	ID              string     `gorm:"type:char(36);primaryKey" json:"id"`
	FormID          string     `gorm:"type:char(36);not null;index" json:"formId"`
	CourseID        *string    `gorm:"size:64;index" json:"courseId"`
	UniversityID    *string    `gorm:"size:64;index" json:"universityId"`
	ApplicantID     string     `gorm:"size:64;not null;index" json:"applicantId"`
	SubmissionToken *string    `gorm:"size:128" json:"-"`
	FormData        JSON       `json:"formData"`
	ApplicantName   string     `gorm:"size:255" json:"applicantName,omitempty"`
	ApplicantEmail  string     `gorm:"size:255;index" json:"applicantEmail,omitempty"`
	ApplicantPhone  string     `gorm:"size:64" json:"applicantPhone,omitempty"`
	Attachments     JSON       `json:"attachments"`
	Status          string     `gorm:"size:16;not null;index" json:"status"`
	Revision        uint64     `gorm:"not null;default:1" json:"revision,string"`
	MatchScore      *float64   `json:"matchScore"`
	ReviewNotes     *string    `gorm:"type:text" json:"reviewNotes"`
	ReviewedBy      *string    `gorm:"size:64" json:"reviewedBy"`
	ReviewedAt      *time.Time `json:"reviewedAt"`
	SubmittedAt     *time.Time `json:"submittedAt"`
	Stage           *string    `gorm:"size:64" json:"stage"`
	StageScores     JSON       `json:"stageScores"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// ApplicationStatusHistory is the append-only audit trail of status changes
type ApplicationStatusHistory struct {
	ID            string    `gorm:"type:char(36);primaryKey" json:"id"`
	ApplicationID string    `gorm:"type:char(36);not null;index" json:"applicationId"`
	FromStatus    string    `gorm:"size:16" json:"fromStatus"`
	ToStatus      string    `gorm:"size:16;not null" json:"toStatus"`
	ChangedBy     string    `gorm:"size:64;not null" json:"changedBy"`
	Notes         *string   `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (a *Application) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Revision == 0 {
		a.Revision = 1
	}
	return nil
}

func (h *ApplicationStatusHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}

// UniversityKey returns the university id or "".
func (a *Application) UniversityKey() string {
	if a.UniversityID == nil {
		return ""
	}
	return *a.UniversityID
}

// TableName overrides the table name for Application
func (Application) TableName() string {
	return "applications"
}

// TableName overrides the table name for ApplicationStatusHistory
func (ApplicationStatusHistory) TableName() string {
	return "application_status_history"
}
