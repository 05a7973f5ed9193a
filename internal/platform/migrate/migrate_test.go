package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractUp(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a (x INT);\n-- +migrate Down\nDROP TABLE a;\n"
	assert.Equal(t, "\nCREATE TABLE a (x INT);\n", ExtractUp(content))
	assert.Equal(t, "CREATE TABLE b (y INT);", ExtractUp("CREATE TABLE b (y INT);"))
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("-- header\nCREATE TABLE a (x INT);\n\nCREATE INDEX i ON a (x);\n-- trailing\n")
	assert.Equal(t, []string{"-- header\nCREATE TABLE a (x INT)", "CREATE INDEX i ON a (x)"}, stmts)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?", QuestionMark(3))
	assert.Equal(t, "$3", Dollar(3))
}
