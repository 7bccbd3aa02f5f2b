package scope

import (
	"net/http"
	"testing"

	"github.com/localnerve/jam-build-intakedb/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func admin(ids ...string) *Actor {
	return &Actor{UserID: "admin-1", Role: Admin{UniversityIDs: ids}}
}

func learner(id string) *Actor {
	return &Actor{UserID: id, Role: Learner{}}
}

var superadmin = &Actor{UserID: "root", Role: Superadmin{}}

func TestScopeList(t *testing.T) {
	f, err := ScopeList(superadmin, "")
	require.NoError(t, err)
	assert.Equal(t, Filter{}, f)

	f, err = ScopeList(admin("u1", "u2"), "")
	require.NoError(t, err)
	assert.Equal(t, "u1", f.UniversityID)

	f, err = ScopeList(admin("u1", "u2"), "u2")
	require.NoError(t, err)
	assert.Equal(t, "u2", f.UniversityID)

	_, err = ScopeList(admin("u1"), "u3")
	assert.True(t, types.HasCode(err, http.StatusForbidden))

	_, err = ScopeList(admin(), "")
	assert.True(t, types.HasCode(err, http.StatusForbidden))

	f, err = ScopeList(learner("l1"), "u9")
	require.NoError(t, err)
	assert.Equal(t, Filter{UniversityID: "u9", ApplicantID: "l1"}, f)

	_, err = ScopeList(nil, "")
	assert.True(t, types.HasCode(err, http.StatusUnauthorized))
}

func TestValidateUniversityAccess(t *testing.T) {
	assert.NoError(t, ValidateUniversityAccess(superadmin, ""))
	assert.NoError(t, ValidateUniversityAccess(admin("u1"), "u1"))
	assert.True(t, types.HasCode(ValidateUniversityAccess(admin("u1"), ""), http.StatusBadRequest))
	assert.True(t, types.HasCode(ValidateUniversityAccess(admin("u1"), "u2"), http.StatusForbidden))
	assert.True(t, types.HasCode(ValidateUniversityAccess(admin(), "u1"), http.StatusForbidden))
	assert.True(t, types.HasCode(ValidateUniversityAccess(learner("l1"), "u1"), http.StatusForbidden))
}

func TestCanAccessTenantIsolation(t *testing.T) {
	rec := Owned{UniversityID: "u1", ApplicantID: "l1"}
	assert.True(t, CanAccess(superadmin, rec))
	assert.True(t, CanAccess(admin("u1"), rec))
	assert.False(t, CanAccess(admin("u2"), rec))
	assert.False(t, CanAccess(admin("u2"), Owned{ApplicantID: "l1"}))
	assert.True(t, CanAccess(learner("l1"), rec))
	assert.False(t, CanAccess(learner("l2"), rec))
	assert.False(t, CanAccess(nil, rec))
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("admin", []string{"u1", ""})
	require.NoError(t, err)
	assert.Equal(t, Admin{UniversityIDs: []string{"u1"}}, r)

	r, err = ParseRole("", nil)
	require.NoError(t, err)
	assert.Equal(t, RoleLearner, r.Name())

	_, err = ParseRole("owner", nil)
	assert.Error(t, err)

	a := admin("u1")
	assert.True(t, a.IsStaff())
	assert.Equal(t, []string{"u1"}, a.UniversityIDs())
	assert.False(t, learner("x").IsStaff())
	assert.Nil(t, learner("x").UniversityIDs())
}
