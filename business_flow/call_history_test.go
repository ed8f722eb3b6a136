package businessflow

import (
	"testing"
	"time"

	"github.com/amirphl/leadflow/models"
	testutil "github.com/amirphl/leadflow/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendCallHistory_AppendOnly(t *testing.T) {
	lead := testutil.NewTestLead(models.LeadStatusInProgress)
	now := fixedNow()

	first, _ := BuildWriteRequest(lead, followUpPatch("First call", nil, now))
	require.Len(t, first.CallHistory, 1)
	before := first.Clone().CallHistory

	next := now.Add(48 * time.Hour)
	second, _ := BuildWriteRequest(first, followUpPatch("Second call", &next, now.Add(time.Hour)))
	require.Len(t, second.CallHistory, 2)
	assert.Equal(t, before[0], second.CallHistory[0])
	assert.Equal(t, before, first.CallHistory)
	assert.Equal(t, "Second call", second.CallHistory[1].Text)
	assert.Equal(t, next, *second.CallHistory[1].NextFollowUp)
}

func TestAppendCallHistory_DoesNotShareBacking(t *testing.T) {
	history := make([]models.CallHistoryEntry, 1, 4)
	history[0] = NewCallHistoryEntry("a", nil, fixedNow())

	one := AppendCallHistory(history, NewCallHistoryEntry("b", nil, fixedNow()))
	two := AppendCallHistory(history, NewCallHistoryEntry("c", nil, fixedNow()))

	assert.Equal(t, "b", one[1].Text)
	assert.Equal(t, "c", two[1].Text)
	assert.Len(t, history, 1)
}

func TestDisplayCallHistory_NewestFirst(t *testing.T) {
	lead := testutil.NewTestLead(models.LeadStatusInProgress)
	lead.CallHistory = []models.CallHistoryEntry{
		NewCallHistoryEntry("old", nil, fixedNow()),
		NewCallHistoryEntry("new", nil, fixedNow().Add(time.Hour)),
	}

	shown := lead.DisplayCallHistory()
	assert.Equal(t, "new", shown[0].Text)
	assert.Equal(t, "old", lead.CallHistory[0].Text)
}
