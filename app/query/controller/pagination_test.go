package controller

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePageSpec(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/claims", nil)
		spec, err := parsePageSpec(r)
		require.NoError(t, err)
		assert.Equal(t, defaultLimit, spec.Limit)
		assert.Equal(t, uint64(0), spec.Cursor)
		assert.Equal(t, SortOrderDesc, spec.Sort)
	})

	t.Run("explicit values", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/claims?limit=25&cursor=120&sort=asc", nil)
		spec, err := parsePageSpec(r)
		require.NoError(t, err)
		assert.Equal(t, 25, spec.Limit)
		assert.Equal(t, uint64(120), spec.Cursor)
		assert.Equal(t, SortOrderAsc, spec.Sort)
	})

	t.Run("limit is capped", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/claims?limit=5000", nil)
		spec, err := parsePageSpec(r)
		require.NoError(t, err)
		assert.Equal(t, maxLimit, spec.Limit)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		for _, q := range []string{"limit=0", "limit=abc", "cursor=-1", "cursor=abc", "sort=sideways"} {
			r := httptest.NewRequest("GET", "/claims?"+q, nil)
			_, err := parsePageSpec(r)
			assert.Error(t, err, q)
		}
	})
}

func TestParseBoolParam(t *testing.T) {
	r := httptest.NewRequest("GET", "/agents?validated=true", nil)
	v, err := parseBoolParam(r, "validated")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.True(t, *v)

	r = httptest.NewRequest("GET", "/agents", nil)
	v, err = parseBoolParam(r, "validated")
	require.NoError(t, err)
	assert.Nil(t, v)

	r = httptest.NewRequest("GET", "/agents?validated=maybe", nil)
	_, err = parseBoolParam(r, "validated")
	assert.Error(t, err)
}
