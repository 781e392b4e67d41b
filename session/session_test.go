package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMerge_SrcWinsOnConflict(t *testing.T) {
	dst := Session{"user": map[string]any{"id": 1, "name": "a"}, "theme": "light"}
	src := Session{"user": map[string]any{"name": "b"}}

	out := Merge(dst, src)

	user := out["user"].(map[string]any)
	assert.Equal(t, "b", user["name"], "new data wins on key conflict")
	assert.Equal(t, 1, user["id"], "non-conflicting nested keys survive")
	assert.Equal(t, "light", out["theme"], "non-conflicting top-level keys survive")
}

func TestMerge_RecursesAtEveryLevel(t *testing.T) {
	dst := Session{
		"secure": map[string]any{
			"tokens": map[string]any{"access": "old", "refresh": "keep"},
		},
	}
	src := Session{
		"secure": map[string]any{
			"tokens": map[string]any{"access": "new"},
		},
	}

	out := Merge(dst, src)

	tokens := out["secure"].(map[string]any)["tokens"].(map[string]any)
	assert.Equal(t, "new", tokens["access"])
	assert.Equal(t, "keep", tokens["refresh"])
}

func TestMerge_ScalarReplacesMap(t *testing.T) {
	dst := Session{"user": map[string]any{"id": 1}}
	src := Session{"user": "gone"}

	out := Merge(dst, src)
	assert.Equal(t, "gone", out["user"])
}

func TestMerge_NilDst(t *testing.T) {
	out := Merge(nil, Session{"a": 1})
	assert.Equal(t, 1, out["a"])
}

func TestClone_IsDeep(t *testing.T) {
	s := Session{"user": map[string]any{"id": 1}}
	c := s.Clone()
	c["user"].(map[string]any)["id"] = 2

	assert.Equal(t, 1, s["user"].(map[string]any)["id"], "mutating the clone must not touch the original")
}

func TestPublicView_StripsSecureAndID(t *testing.T) {
	s := Session{
		fieldID:         "abc",
		FieldUser:       map[string]any{"id": 1},
		FieldSecure:     map[string]any{"apiToken": "hush"},
		FieldLoggedInAt: int64(1700000000000),
	}

	view := s.PublicView()

	assert.NotContains(t, view, FieldSecure)
	assert.NotContains(t, view, fieldID)
	assert.Contains(t, view, FieldUser)
	assert.Contains(t, view, FieldLoggedInAt)

	// The original is untouched.
	assert.Contains(t, s, FieldSecure)
}

func TestID_EmptyForFreshSession(t *testing.T) {
	assert.Empty(t, Session{}.ID())
	assert.Equal(t, "abc", Session{fieldID: "abc"}.ID())
}
