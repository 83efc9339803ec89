package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/homegrubhub/homegrubhub-be/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryHelpers(t *testing.T) {
	r := httptest.NewRequest("GET", "/?dietary=vegan,%20gluten_free&dietary=nut_free&quick=YES&page=x&max_prep=15&max_calories=abc", nil)

	assert.Equal(t, []string{"vegan", "gluten_free", "nut_free"}, queryList(r, "dietary"))
	assert.Nil(t, queryList(r, "season"))
	assert.True(t, queryBool(r, "quick"))
	assert.False(t, queryBool(r, "missing"))
	assert.Equal(t, 1, queryInt(r, "page", 1))

	prep, err := queryIntPtr(r, "max_prep")
	require.NoError(t, err)
	require.NotNil(t, prep)
	assert.Equal(t, 15, *prep)

	none, err := queryIntPtr(r, "max_cook")
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = queryFloatPtr(r, "max_calories")
	assert.True(t, apperr.Is(err, apperr.CodeValidationFailed))
}
