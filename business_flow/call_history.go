package businessflow

import (
	"strings"
	"time"

	"github.com/amirphl/leadflow/models"
	"github.com/amirphl/leadflow/utils"
)

// AppendCallHistory returns a new history with entry added last; history itself is not touched
func AppendCallHistory(history []models.CallHistoryEntry, entry models.CallHistoryEntry) []models.CallHistoryEntry {
	out := make([]models.CallHistoryEntry, len(history), len(history)+1)
	copy(out, history)
	return append(out, entry)
}

// NewCallHistoryEntry builds the record of one follow-up call made at now
func NewCallHistoryEntry(text string, nextFollowUp *time.Time, now time.Time) models.CallHistoryEntry {
	entry := models.CallHistoryEntry{
		Text:      strings.TrimSpace(text),
		Date:      now.Format(utils.DateLayout),
		Timestamp: now,
	}
	if nextFollowUp != nil {
		t := *nextFollowUp
		entry.NextFollowUp = &t
	}
	return entry
}

// followUpPatch records a follow-up note: latest description, next call and one history entry
func followUpPatch(text string, nextFollowUp *time.Time, now time.Time) LeadPatch {
	entry := NewCallHistoryEntry(text, nextFollowUp, now)
	return LeadPatch{
		CallDescription: &entry.Text,
		NextCall:        entry.NextFollowUp,
		CallEntry:       &entry,
	}
}
