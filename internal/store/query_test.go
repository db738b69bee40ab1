package store

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trafficlens/internal/metrics"
)

func TestPlaceholdersAreNumberedInOrder(t *testing.T) {
	filters := metrics.Filters{
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Fields: map[string]metrics.Filter{
			"browser": metrics.ParseFilter("browser", "c.fire"),
		},
	}

	stmt, err := PageviewMetricsSQL(Postgres{}, 3, "entry", filters, 10, 5)
	require.NoError(t, err)

	for i := 1; i <= len(stmt.Args); i++ {
		assert.Contains(t, stmt.SQL, Postgres{}.Placeholder(i))
	}
	assert.NotContains(t, stmt.SQL, Postgres{}.Placeholder(len(stmt.Args)+1))
	assert.Contains(t, stmt.SQL, "ILIKE")
	assert.Contains(t, stmt.SQL, "MIN(e.created_at)")

	// inner range (website, start, end, type), outer range, filter, type, limit, offset
	require.Len(t, stmt.Args, 11)
	assert.Equal(t, int64(3), stmt.Args[0])
	assert.Equal(t, "%fire%", stmt.Args[7])
	assert.Equal(t, 10, stmt.Args[9])
	assert.Equal(t, 5, stmt.Args[10])
}

func TestSQLiteUsesQuestionMarks(t *testing.T) {
	stmt, err := SessionMetricsSQL(SQLite{}, 1, "language", metrics.Filters{}, 0, 0)
	require.NoError(t, err)

	assert.Equal(t, len(stmt.Args), strings.Count(stmt.SQL, "?"))
	assert.Contains(t, stmt.SQL, "s.language")
	assert.NotContains(t, stmt.SQL, "LIMIT")
}

func TestLikePatternEscapesWildcards(t *testing.T) {
	assert.Equal(t, `%50\%\_off\\%`, likePattern(`50%_off\`))
}

func TestUnknownMetricColumnIsRejected(t *testing.T) {
	_, err := SessionMetricsSQL(SQLite{}, 1, "channel", metrics.Filters{}, 0, 0)
	assert.ErrorIs(t, err, metrics.ErrBadRequest)

	_, err = PageviewMetricsSQL(SQLite{}, 1, "nope", metrics.Filters{}, 0, 0)
	assert.ErrorIs(t, err, metrics.ErrBadRequest)
}

func TestExitUsesLatestPageview(t *testing.T) {
	stmt, err := PageviewMetricsSQL(SQLite{}, 1, "exit", metrics.Filters{}, 0, 0)
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, "MAX(e.created_at)")
}

func TestEventDataSQLFiltersByName(t *testing.T) {
	stmt, err := EventDataSQL(Postgres{}, 1, "signup", metrics.Filters{})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, "e.event_name = $3")
	assert.Equal(t, []any{int64(1), EventTypeCustom, "signup"}, stmt.Args)
}
