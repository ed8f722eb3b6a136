package businessflow

import (
	"testing"

	"github.com/amirphl/leadflow/models"
	"github.com/amirphl/leadflow/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckTransition_Table(t *testing.T) {
	tests := []struct {
		name    string
		from    models.LeadStatus
		to      models.LeadStatus
		role    models.Role
		allowed bool
		req     TransitionRequirement
	}{
		{"manager assigns new lead", models.LeadStatusNew, models.LeadStatusAssigned, models.RoleManager, true, RequireAssignment},
		{"sales cannot assign", models.LeadStatusNew, models.LeadStatusAssigned, models.RoleSales, false, ""},
		{"sales starts work", models.LeadStatusAssigned, models.LeadStatusInProgress, models.RoleSales, true, RequireNothing},
		{"manager verifies", models.LeadStatusInProgress, models.LeadStatusVerified, models.RoleManager, true, RequireNothing},
		{"sales converts", models.LeadStatusVerified, models.LeadStatusConverted, models.RoleSales, true, RequireConversion},
		{"lost from in progress", models.LeadStatusInProgress, models.LeadStatusLost, models.RoleSales, true, RequireLostReason},
		{"junk from verified", models.LeadStatusVerified, models.LeadStatusJunk, models.RoleManager, true, RequireJunkReason},
		{"no skipping to verified", models.LeadStatusAssigned, models.LeadStatusVerified, models.RoleManager, false, ""},
		{"new cannot be lost", models.LeadStatusNew, models.LeadStatusLost, models.RoleManager, false, ""},
		{"converted is final", models.LeadStatusConverted, models.LeadStatusLost, models.RoleManager, false, ""},
		{"lost cannot reopen", models.LeadStatusLost, models.LeadStatusAssigned, models.RoleManager, false, ""},
		{"same status", models.LeadStatusInProgress, models.LeadStatusInProgress, models.RoleSales, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := CheckTransition(tt.from, tt.to, tt.role)
			if !tt.allowed {
				require.Error(t, err)
				assert.True(t, IsTransitionNotAllowed(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.req, rule.Requirement)
		})
	}
}

func TestCheckTransition_ClosedOverAllPairs(t *testing.T) {
	allowed := 0
	for _, from := range models.LeadStatuses {
		for _, to := range models.LeadStatuses {
			for _, role := range []models.Role{models.RoleManager, models.RoleSales} {
				_, inTable := FindTransitionRule(from, to, role)
				_, err := CheckTransition(from, to, role)
				if inTable {
					allowed++
					assert.NoError(t, err, "%s -> %s as %s", from, to, role)
				} else {
					assert.True(t, IsTransitionNotAllowed(err), "%s -> %s as %s", from, to, role)
				}
			}
		}
	}
	// 1 manager-only row plus 9 rows open to both roles
	assert.Equal(t, 19, allowed)
}

func TestAllowedTransitions(t *testing.T) {
	assert.Equal(t, []models.LeadStatus{models.LeadStatusAssigned}, AllowedTransitions(models.LeadStatusNew, models.RoleManager))
	assert.Empty(t, AllowedTransitions(models.LeadStatusNew, models.RoleSales))
	assert.ElementsMatch(t,
		[]models.LeadStatus{models.LeadStatusConverted, models.LeadStatusLost, models.LeadStatusJunk},
		AllowedTransitions(models.LeadStatusVerified, models.RoleSales))
	assert.Empty(t, AllowedTransitions(models.LeadStatusJunk, models.RoleManager))
}

func TestValidateTransitionPayload(t *testing.T) {
	rule := func(from, to models.LeadStatus) TransitionRule {
		r, ok := FindTransitionRule(from, to, models.RoleManager)
		require.True(t, ok)
		return r
	}

	t.Run("lost without reason", func(t *testing.T) {
		_, err := ValidateTransitionPayload(rule(models.LeadStatusAssigned, models.LeadStatusLost), TransitionPayload{})
		assert.True(t, IsLostReasonRequired(err))
	})

	t.Run("lost with unknown reason", func(t *testing.T) {
		_, err := ValidateTransitionPayload(rule(models.LeadStatusAssigned, models.LeadStatusLost),
			TransitionPayload{ReasonForLost: utils.ToPtr("Too far")})
		ve, ok := AsValidationError(err)
		require.True(t, ok)
		assert.Contains(t, ve.Fields, string(models.FieldReasonForLost))
	})

	t.Run("lost with listed reason", func(t *testing.T) {
		patch, err := ValidateTransitionPayload(rule(models.LeadStatusVerified, models.LeadStatusLost),
			TransitionPayload{ReasonForLost: utils.ToPtr(string(models.LostReasonCompetitor))})
		require.NoError(t, err)
		assert.Equal(t, models.LeadStatusLost, *patch.Status)
		assert.Equal(t, models.LostReasonCompetitor, *patch.ReasonForLost)
	})

	t.Run("junk accepts empty reason", func(t *testing.T) {
		patch, err := ValidateTransitionPayload(rule(models.LeadStatusInProgress, models.LeadStatusJunk), TransitionPayload{})
		require.NoError(t, err)
		require.NotNil(t, patch.ReasonForJunk)
		assert.Equal(t, "", *patch.ReasonForJunk)
	})

	t.Run("assignment needs someone", func(t *testing.T) {
		_, err := ValidateTransitionPayload(rule(models.LeadStatusNew, models.LeadStatusAssigned),
			TransitionPayload{SalesRep: utils.ToPtr("  ")})
		assert.True(t, IsValidationError(err))
	})

	t.Run("conversion needs the form", func(t *testing.T) {
		_, err := ValidateTransitionPayload(rule(models.LeadStatusVerified, models.LeadStatusConverted), TransitionPayload{})
		assert.ErrorIs(t, err, ErrConversionFormRequired)
	})
}
