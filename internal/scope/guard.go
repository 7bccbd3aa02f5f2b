package scope

import (
	"github.com/localnerve/jam-build-intakedb/internal/types"
)

// Filter narrows a list query. Empty fields mean "no constraint".
type Filter struct {
	UniversityID string
	ApplicantID  string
}

// Owned is the tenant identity of a stored record.
type Owned struct {
	UniversityID string
	ApplicantID  string
}

func member(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// ScopeList resolves the effective filter of a list request.
// Admins without assignments are refused; an admin omitting universityId gets their first one.
func ScopeList(actor *Actor, requestedUniversityID string) (Filter, error) {
	if actor == nil {
		return Filter{}, types.UnauthorizedError("authentication required")
	}
	switch r := actor.Role.(type) {
	case Superadmin:
		return Filter{UniversityID: requestedUniversityID}, nil
	case Admin:
		if len(r.UniversityIDs) == 0 {
			return Filter{}, types.ForbiddenError("admin has no assigned universities")
		}
		if requestedUniversityID == "" {
			return Filter{UniversityID: r.UniversityIDs[0]}, nil
		}
		if !member(r.UniversityIDs, requestedUniversityID) {
			return Filter{}, types.ForbiddenError("university is outside the admin's scope")
		}
		return Filter{UniversityID: requestedUniversityID}, nil
	case Learner:
		return Filter{UniversityID: requestedUniversityID, ApplicantID: actor.UserID}, nil
	}
	return Filter{}, types.ForbiddenError("unknown role")
}

// ValidateUniversityAccess guards a write that targets universityID.
func ValidateUniversityAccess(actor *Actor, universityID string) error {
	if actor == nil {
		return types.UnauthorizedError("authentication required")
	}
	switch r := actor.Role.(type) {
	case Superadmin:
		return nil
	case Admin:
		if len(r.UniversityIDs) == 0 {
			return types.ForbiddenError("admin has no assigned universities")
		}
		if universityID == "" {
			return types.BadRequestError("universityId is required")
		}
		if !member(r.UniversityIDs, universityID) {
			return types.ForbiddenError("university is outside the admin's scope")
		}
		return nil
	case Learner:
		return types.ForbiddenError("insufficient role")
	}
	return types.ForbiddenError("unknown role")
}

// CanManage reports whether a staff actor may read or change records of universityID.
func CanManage(actor *Actor, universityID string) bool {
	if actor == nil {
		return false
	}
	switch r := actor.Role.(type) {
	case Superadmin:
		return true
	case Admin:
		return universityID != "" && member(r.UniversityIDs, universityID)
	case Learner:
		return false
	}
	return false
}

// CanAccess reports whether actor may see the record: its owner, or staff managing its university.
func CanAccess(actor *Actor, rec Owned) bool {
	if actor == nil {
		return false
	}
	switch actor.Role.(type) {
	case Superadmin, Admin:
		return CanManage(actor, rec.UniversityID)
	case Learner:
		return rec.ApplicantID != "" && rec.ApplicantID == actor.UserID
	}
	return false
}
