package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/amirphl/leadflow/app/services"
	"github.com/amirphl/leadflow/models"
	testutil "github.com/amirphl/leadflow/testing"
	"github.com/amirphl/leadflow/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestLeadFlow_TransitionRejectedWithoutWrite(t *testing.T) {
	tests := []struct {
		name   string
		status models.LeadStatus
		to     models.LeadStatus
		actor  Actor
	}{
		{"sales assigns", models.LeadStatusNew, models.LeadStatusAssigned, testSales},
		{"skip to verified", models.LeadStatusAssigned, models.LeadStatusVerified, testManager},
		{"reopen lost", models.LeadStatusLost, models.LeadStatusInProgress, testManager},
		{"junk a new lead", models.LeadStatusNew, models.LeadStatusJunk, testManager},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newFlowDeps(t)
			lead := testutil.NewTestLead(tt.status)
			d.store.On("GetLead", mock.Anything, lead.LeadID).Return(&lead, nil)

			_, err := d.leadFlow().TransitionLead(context.Background(), lead.LeadID,
				&dto.TransitionLeadRequest{Status: tt.to.String(), SalesRep: utils.ToPtr("Alice")}, tt.actor, nil)

			require.Error(t, err)
			assert.True(t, IsTransitionNotAllowed(err))
			d.store.AssertNotCalled(t, "UpdateLead", mock.Anything, mock.Anything, mock.Anything)

			logs, err := d.auditRepo.ListByAction(context.Background(), models.AuditActionTransitionRejected, 10, 0)
			require.NoError(t, err)
			assert.Len(t, logs, 1)
		})
	}
}

func TestLeadFlow_LostRequiresReason(t *testing.T) {
	d := newFlowDeps(t)
	lead := testutil.NewTestLead(models.LeadStatusInProgress)
	d.store.On("GetLead", mock.Anything, lead.LeadID).Return(&lead, nil)

	_, err := d.leadFlow().TransitionLead(context.Background(), lead.LeadID,
		&dto.TransitionLeadRequest{Status: models.LeadStatusLost.String()}, testSales, nil)

	assert.True(t, IsLostReasonRequired(err))
	d.store.AssertNotCalled(t, "UpdateLead", mock.Anything, mock.Anything, mock.Anything)
}

func TestLeadFlow_LostCarriesSnapshot(t *testing.T) {
	d := newFlowDeps(t)
	lead := testutil.NewTestLead(models.LeadStatusInProgress)
	lead.Name = "Asha"
	lead.ContactNumber = utils.ToPtr("9999999999")

	after := lead.Clone()
	after.Status = models.LeadStatusLost
	d.expectLoadAndRefresh(lead, after)
	d.store.On("UpdateLead", mock.Anything, lead.LeadID, mock.Anything).Return(nil, nil).Once()

	resp, err := d.leadFlow().TransitionLead(context.Background(), lead.LeadID, &dto.TransitionLeadRequest{
		Status:        models.LeadStatusLost.String(),
		ReasonForLost: utils.ToPtr(string(models.LostReasonUnresponsive)),
	}, testSales, nil)
	require.NoError(t, err)

	sent := d.store.sentLead(t, "UpdateLead")
	assert.Equal(t, "Asha", sent.Name)
	assert.Equal(t, "9999999999", *sent.ContactNumber)
	assert.Equal(t, lead.Email, sent.Email)
	assert.Equal(t, lead.SalesRep, sent.SalesRep)
	assert.Equal(t, models.LeadStatusLost, sent.Status)
	assert.Equal(t, models.LostReasonUnresponsive, *sent.ReasonForLost)

	assert.Equal(t, "lost", resp.ActiveTab)
	assert.NotEmpty(t, resp.CorrelationID)
	assert.Equal(t, models.LeadStatusLost, resp.Lead.Status)

	rows, err := d.historyRepo.ListByLead(context.Background(), lead.LeadID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.LeadStatusInProgress, rows[0].FromStatus)
	assert.Equal(t, models.LeadStatusLost, rows[0].ToStatus)
	assert.Equal(t, string(models.LostReasonUnresponsive), *rows[0].Reason)
	assert.True(t, *rows[0].Success)
}

func TestLeadFlow_ManagerAssignsNewLead(t *testing.T) {
	d := newFlowDeps(t)
	lead := testutil.NewTestLead(models.LeadStatusNew)

	after := lead.Clone()
	after.Status = models.LeadStatusAssigned
	after.SalesRep = utils.ToPtr("Alice")
	d.expectLoadAndRefresh(lead, after)
	d.store.On("UpdateLead", mock.Anything, lead.LeadID, mock.Anything).Return(nil, nil).Once()

	resp, err := d.leadFlow().AssignLead(context.Background(), lead.LeadID,
		&dto.AssignLeadRequest{SalesRep: utils.ToPtr("Alice")}, testManager, nil)
	require.NoError(t, err)

	sent := d.store.sentLead(t, "UpdateLead")
	assert.Equal(t, models.LeadStatusAssigned, sent.Status)
	assert.Equal(t, "Alice", *sent.SalesRep)
	assert.Equal(t, "assigned", resp.ActiveTab)
	assert.ElementsMatch(t, []string{"salesRep", "status"}, resp.ChangedFields)
}

func TestLeadFlow_SalesCannotAssign(t *testing.T) {
	d := newFlowDeps(t)
	lead := testutil.NewTestLead(models.LeadStatusAssigned)
	d.store.On("GetLead", mock.Anything, lead.LeadID).Return(&lead, nil)

	_, err := d.leadFlow().AssignLead(context.Background(), lead.LeadID,
		&dto.AssignLeadRequest{SalesRep: utils.ToPtr("Bob")}, testSales, nil)

	assert.True(t, IsFieldNotEditable(err))
	d.store.AssertNotCalled(t, "UpdateLead", mock.Anything, mock.Anything, mock.Anything)
}

func TestLeadFlow_UnchangedEditIsCancel(t *testing.T) {
	d := newFlowDeps(t)
	lead := testutil.NewTestLead(models.LeadStatusAssigned)
	d.store.On("GetLead", mock.Anything, lead.LeadID).Return(&lead, nil)

	resp, err := d.leadFlow().UpdateLead(context.Background(), lead.LeadID, &dto.UpdateLeadRequest{
		Name:          utils.ToPtr(lead.Name),
		ContactNumber: lead.ContactNumber,
	}, testManager, nil)
	require.NoError(t, err)

	assert.True(t, resp.Cancelled)
	d.store.AssertNotCalled(t, "UpdateLead", mock.Anything, mock.Anything, mock.Anything)
	d.store.AssertNotCalled(t, "ListLeads", mock.Anything)
}

func TestLeadFlow_UpdateRejectsLockedFields(t *testing.T) {
	d := newFlowDeps(t)
	lead := testutil.NewTestLead(models.LeadStatusVerified)
	d.store.On("GetLead", mock.Anything, lead.LeadID).Return(&lead, nil)

	_, err := d.leadFlow().UpdateLead(context.Background(), lead.LeadID, &dto.UpdateLeadRequest{
		Name:     utils.ToPtr("Renamed"),
		SalesRep: utils.ToPtr("Bob"),
	}, testSales, nil)

	require.Error(t, err)
	assert.True(t, IsFieldNotEditable(err))
	assert.Contains(t, err.Error(), "salesRep")
	d.store.AssertNotCalled(t, "UpdateLead", mock.Anything, mock.Anything, mock.Anything)
}

func TestLeadFlow_RemoteFailureKeepsServerMessage(t *testing.T) {
	d := newFlowDeps(t)
	lead := testutil.NewTestLead(models.LeadStatusAssigned)
	d.store.On("GetLead", mock.Anything, lead.LeadID).Return(&lead, nil)
	d.store.On("UpdateLead", mock.Anything, lead.LeadID, mock.Anything).
		Return(nil, &services.RemoteError{Operation: "update lead", StatusCode: 500, Message: "Lead store unavailable"})

	_, err := d.leadFlow().TransitionLead(context.Background(), lead.LeadID,
		&dto.TransitionLeadRequest{Status: models.LeadStatusInProgress.String()}, testSales, nil)

	require.Error(t, err)
	assert.True(t, IsRemoteFailure(err))
	var be *BusinessError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "REMOTE_FAILURE", be.Code)
	assert.Equal(t, "Lead store unavailable", be.Message)
	d.store.AssertNotCalled(t, "ListLeads", mock.Anything)

	rows, err := d.historyRepo.ListByLead(context.Background(), lead.LeadID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, *rows[0].Success)

	latest, err := d.historyRepo.LatestByLead(context.Background(), lead.LeadID)
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestLeadFlow_FollowUpsAppend(t *testing.T) {
	d := newFlowDeps(t)
	lead := testutil.NewTestLead(models.LeadStatusInProgress)
	flow := d.leadFlow()

	d.store.On("GetLead", mock.Anything, lead.LeadID).Return(&lead, nil).Once()
	d.store.On("UpdateLead", mock.Anything, lead.LeadID, mock.Anything).Return(nil, nil)
	d.store.On("ListLeads", mock.Anything).Return([]models.Lead{lead}, nil)

	_, err := flow.AddFollowUp(context.Background(), lead.LeadID, &dto.FollowUpRequest{Text: "Intro call"}, testSales, nil)
	require.NoError(t, err)
	first := d.store.sentLead(t, "UpdateLead")
	require.Len(t, first.CallHistory, 1)

	next := fixedNow().Add(24 * time.Hour)
	d.store.On("GetLead", mock.Anything, lead.LeadID).Return(&first, nil).Once()
	_, err = flow.AddFollowUp(context.Background(), lead.LeadID, &dto.FollowUpRequest{Text: "Site visit fixed", NextFollowUp: &next}, testSales, nil)
	require.NoError(t, err)

	var second models.Lead
	for _, c := range d.store.Calls {
		if c.Method == "UpdateLead" {
			second = c.Arguments.Get(2).(models.Lead)
		}
	}
	require.Len(t, second.CallHistory, 2)
	assert.Equal(t, first.CallHistory[0], second.CallHistory[0])
	assert.Equal(t, "Site visit fixed", *second.CallDescription)
	assert.Equal(t, next, *second.NextCall)

	// follow-ups do not change status, so no history rows
	rows, err := d.historyRepo.ListByLead(context.Background(), lead.LeadID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestLeadFlow_FollowUpOutsideWindow(t *testing.T) {
	d := newFlowDeps(t)
	lead := testutil.NewTestLead(models.LeadStatusAssigned)
	d.store.On("GetLead", mock.Anything, lead.LeadID).Return(&lead, nil)

	_, err := d.leadFlow().AddFollowUp(context.Background(), lead.LeadID, &dto.FollowUpRequest{Text: "Called"}, testSales, nil)
	assert.True(t, IsFieldNotEditable(err))
}

func TestLeadFlow_CreateWithAssignment(t *testing.T) {
	d := newFlowDeps(t)
	flow := d.leadFlow()

	created := models.Lead{LeadID: "lead-created", Name: "Farah", Status: models.LeadStatusNew, SubmittedBy: utils.ToPtr(testManager.Name)}
	after := created.Clone()
	after.Status = models.LeadStatusAssigned
	after.SalesRep = utils.ToPtr("Alice")

	d.store.On("CreateLead", mock.Anything, mock.MatchedBy(func(l models.Lead) bool {
		return l.Name == "Farah" && l.Status == models.LeadStatusNew && l.SalesRep == nil
	})).Return(&created, nil)
	d.store.On("UpdateLead", mock.Anything, "lead-created", mock.Anything).Return(nil, nil)
	d.store.On("ListLeads", mock.Anything).Return([]models.Lead{after}, nil)

	resp, err := flow.CreateLead(context.Background(), &dto.CreateLeadRequest{
		Name:     " Farah ",
		SalesRep: utils.ToPtr("Alice"),
	}, testManager, nil)
	require.NoError(t, err)

	sent := d.store.sentLead(t, "UpdateLead")
	assert.Equal(t, models.LeadStatusAssigned, sent.Status)
	assert.Equal(t, "assigned", resp.ActiveTab)
}

func TestLeadFlow_SalesCreateWithAssignmentRejected(t *testing.T) {
	d := newFlowDeps(t)

	_, err := d.leadFlow().CreateLead(context.Background(), &dto.CreateLeadRequest{
		Name:     "Farah",
		SalesRep: utils.ToPtr("Alice"),
	}, testSales, nil)

	assert.True(t, IsTransitionNotAllowed(err))
	d.store.AssertNotCalled(t, "CreateLead", mock.Anything, mock.Anything)
}

func TestLeadFlow_GetLead(t *testing.T) {
	d := newFlowDeps(t)
	lead := testutil.NewTestLead(models.LeadStatusVerified)
	d.store.On("GetLead", mock.Anything, lead.LeadID).Return(&lead, nil)

	resp, err := d.leadFlow().GetLead(context.Background(), lead.LeadID, testSales)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"Converted", "Lost", "Junk"}, resp.AllowedTransitions)
	assert.Len(t, resp.LostReasons, len(models.LostReasons))
	assert.False(t, resp.Editable[models.FieldSalesRep])
	assert.True(t, resp.Editable[models.FieldName])
}

func TestLeadFlow_GetLeadNotFound(t *testing.T) {
	d := newFlowDeps(t)
	d.store.On("GetLead", mock.Anything, "missing").Return(nil, nil)

	_, err := d.leadFlow().GetLead(context.Background(), "missing", testManager)
	assert.True(t, IsLeadNotFound(err))
}

func TestLeadFlow_RequiresActor(t *testing.T) {
	d := newFlowDeps(t)
	_, err := d.leadFlow().GetLead(context.Background(), "lead-1", Actor{Name: "x", Role: "admin"})
	assert.ErrorIs(t, err, ErrActorRequired)
}

func TestLeadFlow_MutationInFlight(t *testing.T) {
	require.NoError(t, lockLead("lead-busy"))
	defer unlockLead("lead-busy")

	d := newFlowDeps(t)
	_, err := d.leadFlow().TransitionLead(context.Background(), "lead-busy",
		&dto.TransitionLeadRequest{Status: models.LeadStatusInProgress.String()}, testSales, nil)
	assert.True(t, IsMutationInFlight(err))
}
