package mysql

import (
	"errors"
	"fmt"
	"testing"

	mysqldrv "github.com/go-sql-driver/mysql"
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

func TestIsDuplicate(t *testing.T) {
	assert.True(t, isDuplicate(fmt.Errorf("insert: %w", &mysqldrv.MySQLError{Number: 1062, Message: "Duplicate entry"})))
	assert.False(t, isDuplicate(&mysqldrv.MySQLError{Number: 1146}))
	assert.False(t, isDuplicate(errors.New("boom")))
}
