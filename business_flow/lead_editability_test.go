package businessflow

import (
	"testing"

	"github.com/amirphl/leadflow/models"
	testutil "github.com/amirphl/leadflow/testing"
	"github.com/stretchr/testify/assert"
)

func TestIsEditable_ClosedLeadsAreReadOnly(t *testing.T) {
	for _, status := range []models.LeadStatus{models.LeadStatusLost, models.LeadStatusJunk} {
		lead := testutil.NewTestLead(status)
		for _, role := range []models.Role{models.RoleManager, models.RoleSales} {
			for _, field := range models.AllLeadFields() {
				assert.False(t, IsEditable(lead, role, field), "%s %s %s", status, role, field)
			}
		}
	}
}

func TestIsEditable_NotYetCreatedLeadIsOpen(t *testing.T) {
	lead := models.Lead{Status: models.LeadStatusNew}
	for _, field := range models.AllLeadFields() {
		assert.True(t, IsEditable(lead, models.RoleSales, field), field)
	}
}

func TestIsEditable_SalesAfterVerification(t *testing.T) {
	for _, status := range []models.LeadStatus{models.LeadStatusVerified, models.LeadStatusConverted} {
		lead := testutil.NewTestLead(status)
		for _, field := range models.ProfileFields {
			assert.True(t, IsEditable(lead, models.RoleSales, field), field)
		}
		for _, field := range append(models.AssignmentFields, models.ConversionFields...) {
			assert.False(t, IsEditable(lead, models.RoleSales, field), field)
		}
	}
}

func TestIsEditable_Assignment(t *testing.T) {
	assigned := testutil.NewTestLead(models.LeadStatusAssigned)
	converted := testutil.NewTestLead(models.LeadStatusConverted)

	assert.True(t, IsEditable(assigned, models.RoleManager, models.FieldSalesRep))
	assert.True(t, IsEditable(assigned, models.RoleManager, models.FieldDesigner))
	assert.False(t, IsEditable(assigned, models.RoleSales, models.FieldSalesRep))
	assert.False(t, IsEditable(converted, models.RoleManager, models.FieldSalesRep))
}

func TestIsEditable_FollowUpWindow(t *testing.T) {
	tests := []struct {
		status models.LeadStatus
		role   models.Role
		want   bool
	}{
		{models.LeadStatusAssigned, models.RoleManager, false},
		{models.LeadStatusInProgress, models.RoleManager, true},
		{models.LeadStatusInProgress, models.RoleSales, true},
		{models.LeadStatusVerified, models.RoleSales, true},
		{models.LeadStatusVerified, models.RoleManager, false},
		{models.LeadStatusConverted, models.RoleManager, false},
	}
	for _, tt := range tests {
		lead := testutil.NewTestLead(tt.status)
		assert.Equal(t, tt.want, IsEditable(lead, tt.role, models.FieldCallDescription), "%s %s", tt.status, tt.role)
		assert.Equal(t, tt.want, IsEditable(lead, tt.role, models.FieldNextCall), "%s %s", tt.status, tt.role)
	}
}

func TestLockedFields(t *testing.T) {
	lead := testutil.NewTestLead(models.LeadStatusAssigned)
	locked := LockedFields(lead, models.RoleSales, []models.LeadField{models.FieldName, models.FieldSalesRep, models.FieldNextCall})
	assert.Equal(t, []models.LeadField{models.FieldSalesRep, models.FieldNextCall}, locked)

	fields := EditableFields(lead, models.RoleManager)
	assert.Len(t, fields, len(models.AllLeadFields()))
	assert.True(t, fields[models.FieldName])
	assert.False(t, fields[models.FieldSignupAmount])
}

func TestConversionLockedFields(t *testing.T) {
	changed := []models.LeadField{models.FieldName, models.FieldSignupAmount, models.FieldPaymentDate}

	converted := testutil.NewTestLead(models.LeadStatusConverted)
	assert.Equal(t, []models.LeadField{models.FieldSignupAmount, models.FieldPaymentDate},
		ConversionLockedFields(converted, models.RoleSales, changed))
	assert.Empty(t, ConversionLockedFields(converted, models.RoleManager, changed))

	verified := testutil.NewTestLead(models.LeadStatusVerified)
	assert.Empty(t, ConversionLockedFields(verified, models.RoleSales, changed))

	lost := testutil.NewTestLead(models.LeadStatusLost)
	assert.Len(t, ConversionLockedFields(lost, models.RoleManager, changed), 2)
}
