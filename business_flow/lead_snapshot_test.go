package businessflow

import (
	"testing"

	"github.com/amirphl/leadflow/models"
	testutil "github.com/amirphl/leadflow/testing"
	"github.com/amirphl/leadflow/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildWriteRequest_KeepsStableFields(t *testing.T) {
	current := testutil.NewTestLead(models.LeadStatusInProgress)
	current.Name = "Asha"
	current.ContactNumber = utils.ToPtr("9999999999")
	current.Designer = utils.ToPtr("Dev")

	lost := models.LeadStatusLost
	reason := models.LostReasonTimeline
	next, changed := BuildWriteRequest(current, LeadPatch{Status: &lost, ReasonForLost: &reason})

	assert.Equal(t, "Asha", next.Name)
	assert.Equal(t, "9999999999", *next.ContactNumber)
	assert.Equal(t, current.Email, next.Email)
	assert.Equal(t, current.PropertyType, next.PropertyType)
	assert.Equal(t, current.ProjectAddress, next.ProjectAddress)
	assert.Equal(t, current.ExpectedBudget, next.ExpectedBudget)
	assert.Equal(t, current.SalesRep, next.SalesRep)
	assert.Equal(t, current.Designer, next.Designer)
	assert.Equal(t, models.LeadStatusLost, next.Status)
	assert.Equal(t, models.LostReasonTimeline, *next.ReasonForLost)
	assert.Equal(t, []models.LeadField{models.FieldStatus, models.FieldReasonForLost}, changed)

	// current is untouched
	assert.Equal(t, models.LeadStatusInProgress, current.Status)
	assert.Nil(t, current.ReasonForLost)
}

func TestBuildWriteRequest_UnchangedValues(t *testing.T) {
	current := testutil.NewTestLead(models.LeadStatusAssigned)
	_, changed := BuildWriteRequest(current, LeadPatch{
		Name:          utils.ToPtr(current.Name),
		ContactNumber: utils.ToPtr(*current.ContactNumber),
		SalesRep:      utils.ToPtr(*current.SalesRep),
	})
	assert.Empty(t, changed)
}

func TestBuildWriteRequest_ConversionReplacesAll(t *testing.T) {
	current := testutil.NewTestLead(models.LeadStatusConverted)
	current.PanNumber = utils.ToPtr("ABCDE1234F")

	next, changed := BuildWriteRequest(current, LeadPatch{Conversion: &ConversionDetails{
		SignupAmount: 300000,
		PaymentDate:  "2024-05-01",
	}})

	assert.Equal(t, 300000.0, *next.SignupAmount)
	assert.Nil(t, next.PanNumber)
	assert.Contains(t, changed, models.FieldSignupAmount)
	assert.Contains(t, changed, models.FieldPanNumber)
	assert.NotContains(t, changed, models.FieldPaymentDate)
}

func TestBuildWriteRequest_CallEntryAppends(t *testing.T) {
	current := testutil.NewTestLead(models.LeadStatusInProgress)
	patch := followUpPatch("Called, asked for a site visit", nil, fixedNow())

	next, changed := BuildWriteRequest(current, patch)
	require.Len(t, next.CallHistory, 1)
	assert.Equal(t, "Called, asked for a site visit", next.CallHistory[0].Text)
	assert.Equal(t, "2024-05-01", next.CallHistory[0].Date)
	assert.Equal(t, []models.LeadField{models.FieldCallDescription}, changed)
	assert.Empty(t, current.CallHistory)
}
