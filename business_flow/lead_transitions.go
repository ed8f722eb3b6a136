package businessflow

import (
	"slices"
	"strings"

	"github.com/amirphl/leadflow/models"
	"github.com/amirphl/leadflow/utils"
)

// TransitionRequirement is the payload a transition must carry
type TransitionRequirement string

const (
	RequireNothing    TransitionRequirement = "none"
	RequireAssignment TransitionRequirement = "assignment"
	RequireConversion TransitionRequirement = "conversion"
	RequireLostReason TransitionRequirement = "lost_reason"
	RequireJunkReason TransitionRequirement = "junk_reason"
)

// TransitionRule is one row of the lifecycle table
type TransitionRule struct {
	From        models.LeadStatus
	To          models.LeadStatus
	Roles       []models.Role
	Requirement TransitionRequirement
}

// Allows reports whether role may trigger the rule
func (r TransitionRule) Allows(role models.Role) bool {
	return slices.Contains(r.Roles, role)
}

var (
	managerOnly    = []models.Role{models.RoleManager}
	salesOrManager = []models.Role{models.RoleSales, models.RoleManager}
)

// transitionRules is the complete lifecycle graph; any pair not listed is rejected
var transitionRules = []TransitionRule{
	{From: models.LeadStatusNew, To: models.LeadStatusAssigned, Roles: managerOnly, Requirement: RequireAssignment},
	{From: models.LeadStatusAssigned, To: models.LeadStatusInProgress, Roles: salesOrManager, Requirement: RequireNothing},
	{From: models.LeadStatusInProgress, To: models.LeadStatusVerified, Roles: salesOrManager, Requirement: RequireNothing},
	{From: models.LeadStatusVerified, To: models.LeadStatusConverted, Roles: salesOrManager, Requirement: RequireConversion},

	{From: models.LeadStatusAssigned, To: models.LeadStatusLost, Roles: salesOrManager, Requirement: RequireLostReason},
	{From: models.LeadStatusInProgress, To: models.LeadStatusLost, Roles: salesOrManager, Requirement: RequireLostReason},
	{From: models.LeadStatusVerified, To: models.LeadStatusLost, Roles: salesOrManager, Requirement: RequireLostReason},

	{From: models.LeadStatusAssigned, To: models.LeadStatusJunk, Roles: salesOrManager, Requirement: RequireJunkReason},
	{From: models.LeadStatusInProgress, To: models.LeadStatusJunk, Roles: salesOrManager, Requirement: RequireJunkReason},
	{From: models.LeadStatusVerified, To: models.LeadStatusJunk, Roles: salesOrManager, Requirement: RequireJunkReason},
}

// FindTransitionRule returns the rule for from -> to that role may trigger
func FindTransitionRule(from, to models.LeadStatus, role models.Role) (TransitionRule, bool) {
	for _, r := range transitionRules {
		if r.From == from && r.To == to && r.Allows(role) {
			return r, true
		}
	}
	return TransitionRule{}, false
}

// AllowedTransitions lists the statuses role may move a lead in status to
func AllowedTransitions(status models.LeadStatus, role models.Role) []models.LeadStatus {
	var out []models.LeadStatus
	for _, r := range transitionRules {
		if r.From == status && r.Allows(role) {
			out = append(out, r.To)
		}
	}
	return out
}

// CheckTransition rejects any pair outside the table before anything is sent
func CheckTransition(from, to models.LeadStatus, role models.Role) (TransitionRule, error) {
	rule, ok := FindTransitionRule(from, to, role)
	if !ok {
		return TransitionRule{}, NewBusinessErrorf(
			"TRANSITION_NOT_ALLOWED",
			"Transition from %q to %q is not allowed for role %s",
			ErrTransitionNotAllowed,
			from, to, role,
		)
	}
	return rule, nil
}

// TransitionPayload carries the data a transition requirement may ask for
type TransitionPayload struct {
	SalesRep      *string
	Designer      *string
	ReasonForLost *string
	ReasonForJunk *string
	Conversion    *ConversionDetails
}

// ValidateTransitionPayload enforces the requirement column of rule and returns the patch to apply
func ValidateTransitionPayload(rule TransitionRule, payload TransitionPayload) (LeadPatch, error) {
	patch := LeadPatch{Status: &rule.To}

	switch rule.Requirement {
	case RequireNothing:
	case RequireAssignment:
		salesRep := utils.TrimmedPtr(payload.SalesRep)
		designer := utils.TrimmedPtr(payload.Designer)
		if salesRep == nil && designer == nil {
			ve := NewValidationError()
			ve.Add(string(models.FieldSalesRep), ErrAssignmentRequired.Error())
			return LeadPatch{}, ve
		}
		patch.SalesRep = salesRep
		patch.Designer = designer
	case RequireConversion:
		if payload.Conversion == nil {
			return LeadPatch{}, NewBusinessError("CONVERSION_FORM_REQUIRED", "Use the conversion form to convert a lead", ErrConversionFormRequired)
		}
		patch.Conversion = payload.Conversion
	case RequireLostReason:
		reason := utils.TrimmedPtr(payload.ReasonForLost)
		if reason == nil {
			return LeadPatch{}, NewBusinessError("LOST_REASON_REQUIRED", "Select a reason before marking the lead lost", ErrLostReasonRequired)
		}
		lost := models.LostReason(*reason)
		if !lost.Valid() {
			ve := NewValidationError()
			ve.Add(string(models.FieldReasonForLost), ErrInvalidLostReason.Error())
			return LeadPatch{}, ve
		}
		patch.ReasonForLost = &lost
	case RequireJunkReason:
		reason := ""
		if payload.ReasonForJunk != nil {
			reason = strings.TrimSpace(*payload.ReasonForJunk)
		}
		patch.ReasonForJunk = &reason
	}

	return patch, nil
}

func statusStrings(statuses []models.LeadStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, s.String())
	}
	return out
}
