package businessflow

import "sync"

var (
	leadMutationMu sync.Mutex
	leadsInFlight  = make(map[string]struct{})
)

// lockLead claims the lead for one mutation; a second concurrent claim fails
func lockLead(leadID string) error {
	leadMutationMu.Lock()
	defer leadMutationMu.Unlock()

	if _, busy := leadsInFlight[leadID]; busy {
		return NewBusinessError("MUTATION_IN_FLIGHT", "Another change to this lead is still being saved", ErrMutationInFlight)
	}
	leadsInFlight[leadID] = struct{}{}
	return nil
}

func unlockLead(leadID string) {
	leadMutationMu.Lock()
	delete(leadsInFlight, leadID)
	leadMutationMu.Unlock()
}
