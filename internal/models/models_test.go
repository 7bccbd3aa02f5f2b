package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONColumn(t *testing.T) {
	j := MustJSON([]string{"a", "b"})
	var out []string
	require.NoError(t, j.Decode(&out))
	assert.Equal(t, []string{"a", "b"}, out)

	var empty JSON
	require.NoError(t, empty.Scan(nil))
	b, err := json.Marshal(empty)
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))
	assert.NoError(t, empty.Decode(&out))

	require.NoError(t, empty.Scan([]byte(`{"k":1}`)))
	b, err = json.Marshal(struct {
		Data JSON `json:"data"`
	}{empty})
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":{"k":1}}`, string(b))
}

func TestFormAcceptsSubmissions(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	before := now.Add(-time.Hour)
	after := now.Add(time.Hour)

	f := &Form{Status: FormPublished, IsActive: true}
	assert.True(t, f.AcceptsSubmissions(now))

	f.StartDate, f.EndDate = &before, &after
	assert.True(t, f.AcceptsSubmissions(now))

	f.StartDate = &after
	assert.False(t, f.AcceptsSubmissions(now))

	f.StartDate, f.EndDate = nil, &before
	assert.False(t, f.AcceptsSubmissions(now))

	assert.False(t, (&Form{Status: FormPublished}).AcceptsSubmissions(now))
	assert.False(t, (&Form{Status: FormArchived, IsActive: true}).AcceptsSubmissions(now))
	assert.False(t, (&Form{Status: FormDraft, IsActive: true}).AcceptsSubmissions(now))
}

func TestFormCourseIDs(t *testing.T) {
	f := &Form{ID: "f1"}
	f.SetCourseIDs([]string{"c1", "c2"})
	assert.Equal(t, []FormCourse{{FormID: "f1", CourseID: "c1"}, {FormID: "f1", CourseID: "c2"}}, f.Courses)

	loaded := &Form{Courses: []FormCourse{{CourseID: "c9"}}}
	require.NoError(t, loaded.AfterFind(nil))
	assert.Equal(t, []string{"c9"}, loaded.CourseIDs)

	b, err := json.Marshal(&Form{Version: 3})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"version":"3"`)
}
