package businessflow

import (
	"slices"

	"github.com/amirphl/leadflow/models"
)

// editabilityRule decides a field when it matches; the first matching rule wins
type editabilityRule struct {
	name   string
	decide func(lead *models.Lead, role models.Role, field models.LeadField) (editable, matched bool)
}

var editabilityRules = []editabilityRule{
	{
		// not created yet: the whole form is open
		name: "new_lead",
		decide: func(lead *models.Lead, _ models.Role, _ models.LeadField) (bool, bool) {
			return true, lead.IsNew()
		},
	},
	{
		name: "closed_lead",
		decide: func(lead *models.Lead, _ models.Role, _ models.LeadField) (bool, bool) {
			return false, lead.Status.IsClosed()
		},
	},
	{
		name: "sales_after_verification",
		decide: func(lead *models.Lead, role models.Role, field models.LeadField) (bool, bool) {
			if role != models.RoleSales {
				return false, false
			}
			if lead.Status != models.LeadStatusVerified && lead.Status != models.LeadStatusConverted {
				return false, false
			}
			switch {
			case slices.Contains(models.ProfileFields, field):
				return true, true
			case slices.Contains(models.ConversionFields, field), slices.Contains(models.AssignmentFields, field):
				return false, true
			}
			return false, false
		},
	},
	{
		name: "assignment",
		decide: func(lead *models.Lead, role models.Role, field models.LeadField) (bool, bool) {
			if !slices.Contains(models.AssignmentFields, field) {
				return false, false
			}
			return role == models.RoleManager && !lead.Status.IsTerminal(), true
		},
	},
	{
		name: "active_lead",
		decide: func(lead *models.Lead, role models.Role, field models.LeadField) (bool, bool) {
			switch {
			case slices.Contains(models.ProfileFields, field):
				return true, true
			case slices.Contains(models.FollowUpFields, field):
				return lead.Status == models.LeadStatusInProgress ||
					(lead.Status == models.LeadStatusVerified && role == models.RoleSales), true
			}
			return false, false
		},
	},
}

// IsEditable reports whether role may change field on lead through the edit form.
// Conversion and lifecycle fields are owned by the conversion and transition commands.
func IsEditable(lead models.Lead, role models.Role, field models.LeadField) bool {
	for _, rule := range editabilityRules {
		if editable, matched := rule.decide(&lead, role, field); matched {
			return editable
		}
	}
	return false
}

// EditableFields returns the editability of every field for the console form
func EditableFields(lead models.Lead, role models.Role) map[models.LeadField]bool {
	fields := models.AllLeadFields()
	out := make(map[models.LeadField]bool, len(fields))
	for _, f := range fields {
		out[f] = IsEditable(lead, role, f)
	}
	return out
}

// LockedFields returns the members of changed that role may not edit
func LockedFields(lead models.Lead, role models.Role, changed []models.LeadField) []models.LeadField {
	var locked []models.LeadField
	for _, f := range changed {
		if !IsEditable(lead, role, f) {
			locked = append(locked, f)
		}
	}
	return locked
}

// ConversionLockedFields returns the changed conversion fields role may not rewrite
// through the conversion form. Only a Manager edits the details of a converted lead.
func ConversionLockedFields(lead models.Lead, role models.Role, changed []models.LeadField) []models.LeadField {
	var locked []models.LeadField
	for _, f := range changed {
		if !slices.Contains(models.ConversionFields, f) {
			continue
		}
		if lead.Status.IsClosed() || (lead.Status == models.LeadStatusConverted && role != models.RoleManager) {
			locked = append(locked, f)
		}
	}
	return locked
}
