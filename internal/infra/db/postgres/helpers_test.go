package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestJSONListColumns(t *testing.T) {
	assert.Equal(t, "[]", jsonList(nil))
	assert.Equal(t, `["a","b \"c\""]`, jsonList([]string{"a", `b "c"`}))

	assert.Equal(t, []string{"a", `b "c"`}, parseList(`["a","b \"c\""]`))
	assert.Equal(t, []string{}, parseList(""))
	assert.Equal(t, []string{}, parseList("null"))
	assert.Equal(t, []string{}, parseList("{broken"))
}

func TestValidJSON(t *testing.T) {
	assert.Equal(t, "{}", validJSON("  "))
	assert.Equal(t, `{"messages":3}`, validJSON(`{"messages":3}`))
	assert.Equal(t, `{"raw":"not json"}`, validJSON("not json"))
}

func TestStringOrDash(t *testing.T) {
	assert.Equal(t, "-", stringOrDash(" "))
	assert.Equal(t, "eng", stringOrDash("eng"))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "42P01"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}
