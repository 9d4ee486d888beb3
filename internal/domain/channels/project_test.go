package channels

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProject(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	p, err := NewProject("  install crew ", " C0123456 ", now)
	require.NoError(t, err)
	assert.Equal(t, "install crew", p.Name)
	assert.Equal(t, "C0123456", p.ChannelID)
	assert.Equal(t, now, p.CreatedAt)

	_, err = NewProject("", "C0123456", now)
	assert.ErrorIs(t, err, ErrProjectNameRequired)
	_, err = NewProject("x", "", now)
	assert.ErrorIs(t, err, ErrChannelRequired)
	_, err = NewProject("x", "general", now)
	assert.ErrorIs(t, err, ErrInvalidChannel)
}

func TestParseTasks(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	tasks := ParseTasks([]string{
		"- Fix login (@bo, due: 2025-03-07)",
		"Order adapters (@ana.l)",
		"Call supplier (@ben, due: Friday)\n- Book van (@ana, due: March 4, 2025)",
		"@ben confirm shipment",
		"Nobody owns this",
	}, now)

	require.Len(t, tasks, 4)
	assert.Equal(t, "Fix login", tasks[0].Description)
	assert.Equal(t, "bo", tasks[0].Assignee)
	require.NotNil(t, tasks[0].DueDate)
	assert.Equal(t, time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC), *tasks[0].DueDate)
	assert.Equal(t, TaskOpen, tasks[0].Status)
	assert.Equal(t, now, tasks[0].CreatedAt)

	assert.Equal(t, "ana.l", tasks[1].Assignee)
	assert.Nil(t, tasks[1].DueDate)
	assert.Empty(t, tasks[1].DueText)

	assert.Equal(t, "Call supplier", tasks[2].Description)
	assert.Nil(t, tasks[2].DueDate)
	assert.Equal(t, "Friday", tasks[2].DueText)

	require.NotNil(t, tasks[3].DueDate)
	assert.Equal(t, time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), *tasks[3].DueDate)

	assert.Empty(t, ParseTasks(nil, now))
}

func TestSortTasksByDue(t *testing.T) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	d1, d2 := base.AddDate(0, 0, 1), base.AddDate(0, 0, 2)
	tasks := []*Task{
		{Description: "undated old", CreatedAt: base},
		{Description: "later", DueDate: &d2},
		{Description: "undated new", CreatedAt: base.Add(time.Hour)},
		{Description: "sooner", DueDate: &d1},
	}
	SortTasksByDue(tasks)

	var got []string
	for _, t := range tasks {
		got = append(got, t.Description)
	}
	assert.Equal(t, []string{"sooner", "later", "undated old", "undated new"}, got)
}

func TestNewestTSAndAfter(t *testing.T) {
	msgs := []Message{
		{TS: "1712318400.000100"},
		{TS: "1712404800.000100"},
		{TS: "bogus"},
		{TS: "1712318500.000100"},
	}
	assert.Equal(t, "1712404800.000100", NewestTS(msgs))
	assert.Empty(t, NewestTS(nil))

	cursor, err := ParseTS("1712318500.000100")
	require.NoError(t, err)
	after := After(msgs, cursor)
	require.Len(t, after, 2)
	assert.Equal(t, "1712404800.000100", after[0].TS)
	assert.Equal(t, "bogus", after[1].TS)
}
