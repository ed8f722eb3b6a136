package businessflow

import (
	"strings"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/amirphl/leadflow/models"
)

// LeadTab is a console tab bound to one status
type LeadTab struct {
	Key    string
	Label  string
	Status models.LeadStatus
}

var managerTabs = []LeadTab{
	{Key: "new", Label: "New", Status: models.LeadStatusNew},
	{Key: "assigned", Label: "Assigned", Status: models.LeadStatusAssigned},
	{Key: "in-progress", Label: "In Progress", Status: models.LeadStatusInProgress},
	{Key: "verified", Label: "Verified", Status: models.LeadStatusVerified},
	{Key: "converted", Label: "Converted", Status: models.LeadStatusConverted},
	{Key: "lost", Label: "Lost", Status: models.LeadStatusLost},
	{Key: "junk", Label: "Junk", Status: models.LeadStatusJunk},
}

var salesTabs = []LeadTab{
	{Key: "assigned", Label: "Assigned Leads", Status: models.LeadStatusAssigned},
	{Key: "in-progress", Label: "In Progress", Status: models.LeadStatusInProgress},
	{Key: "verified", Label: "Verified Leads", Status: models.LeadStatusVerified},
	{Key: "converted", Label: "Converted Leads", Status: models.LeadStatusConverted},
	{Key: "lost", Label: "Lost Leads", Status: models.LeadStatusLost},
	{Key: "junk", Label: "Junk Leads", Status: models.LeadStatusJunk},
}

// TabsForRole returns the tab set a role sees
func TabsForRole(role models.Role) []LeadTab {
	if role == models.RoleManager {
		return managerTabs
	}
	return salesTabs
}

// DefaultTab is the tab a role lands on
func DefaultTab(role models.Role) LeadTab {
	return TabsForRole(role)[0]
}

// ResolveTab maps a tab key or status name to a tab of role
func ResolveTab(role models.Role, key string) (LeadTab, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return DefaultTab(role), true
	}
	for _, t := range TabsForRole(role) {
		if strings.EqualFold(t.Key, key) || strings.EqualFold(string(t.Status), key) {
			return t, true
		}
	}
	return LeadTab{}, false
}

// TabForStatus returns the tab showing status, or the default tab when role has none
func TabForStatus(role models.Role, status models.LeadStatus) LeadTab {
	for _, t := range TabsForRole(role) {
		if t.Status == status {
			return t
		}
	}
	return DefaultTab(role)
}

// FilterLeads keeps leads in status whose scalar fields contain search, case-insensitively
func FilterLeads(leads []models.Lead, status models.LeadStatus, search string) []models.Lead {
	needle := strings.ToLower(strings.TrimSpace(search))
	out := make([]models.Lead, 0, len(leads))
	for i := range leads {
		if leads[i].Status != status {
			continue
		}
		if needle != "" && !strings.Contains(leads[i].SearchText(), needle) {
			continue
		}
		out = append(out, leads[i])
	}
	return out
}

// BuildTabs counts the unfiltered collection per tab
func BuildTabs(role models.Role, leads []models.Lead) []dto.LeadTabDTO {
	counts := make(map[models.LeadStatus]int, len(models.LeadStatuses))
	for i := range leads {
		counts[leads[i].Status]++
	}

	tabs := TabsForRole(role)
	out := make([]dto.LeadTabDTO, 0, len(tabs))
	for _, t := range tabs {
		out = append(out, dto.LeadTabDTO{
			Key:    t.Key,
			Label:  t.Label,
			Status: t.Status.String(),
			Count:  counts[t.Status],
		})
	}
	return out
}

func findLead(leads []models.Lead, leadID string) *models.Lead {
	for i := range leads {
		if leads[i].LeadID == leadID {
			return &leads[i]
		}
	}
	return nil
}
