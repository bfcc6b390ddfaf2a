package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTable(t *testing.T) {
	legal := map[[2]ComplaintStatus]bool{
		{StatusSubmitted, StatusAssigned}:   true,
		{StatusAssigned, StatusInProgress}:  true,
		{StatusInProgress, StatusResolved}:  true,
		{StatusInProgress, StatusEscalated}: true,
		{StatusAssigned, StatusEscalated}:   true,
		{StatusResolved, StatusClosed}:      true,
		{StatusEscalated, StatusClosed}:     true,
	}

	for _, from := range Statuses {
		for _, to := range Statuses {
			want := legal[[2]ComplaintStatus{from, to}]
			assert.Equalf(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestClosedIsTerminal(t *testing.T) {
	assert.True(t, StatusClosed.IsTerminal())
	assert.Empty(t, Successors(StatusClosed))
	assert.Equal(t, []ComplaintStatus{StatusInProgress, StatusEscalated}, Successors(StatusAssigned))
}

func TestUnknownStatus(t *testing.T) {
	assert.False(t, ComplaintStatus("reopened").Valid())
	assert.False(t, CanTransition("reopened", StatusClosed))
}

func TestCanEscalateFrom(t *testing.T) {
	for _, s := range Statuses {
		want := s == StatusAssigned || s == StatusInProgress
		assert.Equal(t, want, s.CanEscalateFrom(), string(s))
	}
}

func TestAppendHistoryKeepsStatusInSync(t *testing.T) {
	c := &Complaint{Status: StatusSubmitted, StatusHistory: []StatusHistoryEntry{{Status: StatusSubmitted}}}
	c.AppendHistory(StatusHistoryEntry{Status: StatusAssigned, Event: HistoryStatusChange})

	last, ok := c.LastHistory()
	assert.True(t, ok)
	assert.Equal(t, c.Status, last.Status)
	assert.Len(t, c.StatusHistory, 2)
}

func TestCloneDoesNotAlias(t *testing.T) {
	assignee := "staff-1"
	c := &Complaint{AssignedTo: &assignee, StatusHistory: []StatusHistoryEntry{{Status: StatusAssigned}}}
	cp := c.Clone()
	*cp.AssignedTo = "staff-2"
	cp.StatusHistory[0].Remarks = "changed"

	assert.Equal(t, "staff-1", *c.AssignedTo)
	assert.Empty(t, c.StatusHistory[0].Remarks)
}
