package businessflow

import (
	"testing"
	"time"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/amirphl/leadflow/models"
	testutil "github.com/amirphl/leadflow/testing"
	"github.com/amirphl/leadflow/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func sampleLeads() []models.Lead {
	a := testutil.NewTestLead(models.LeadStatusAssigned)
	a.Name = "Asha Rao"
	b := testutil.NewTestLead(models.LeadStatusAssigned)
	b.Name = "Bharat Shah"
	c := testutil.NewTestLead(models.LeadStatusInProgress)
	c.Name = "Chitra Iyer"
	d := testutil.NewTestLead(models.LeadStatusNew)
	d.Name = "Deepak"
	return []models.Lead{a, b, c, d}
}

func tabCount(tabs []dto.LeadTabDTO, key string) int {
	for _, tab := range tabs {
		if tab.Key == key {
			return tab.Count
		}
	}
	return -1
}

func TestTabsForRole(t *testing.T) {
	assert.Len(t, TabsForRole(models.RoleManager), len(models.LeadStatuses))
	assert.Equal(t, "new", DefaultTab(models.RoleManager).Key)

	sales := TabsForRole(models.RoleSales)
	assert.Len(t, sales, 6)
	assert.Equal(t, "Assigned Leads", sales[0].Label)
	assert.Equal(t, models.LeadStatusAssigned, sales[0].Status)

	_, ok := ResolveTab(models.RoleSales, "new")
	assert.False(t, ok)
	tab, ok := ResolveTab(models.RoleSales, "In Progress")
	require.True(t, ok)
	assert.Equal(t, "in-progress", tab.Key)

	assert.Equal(t, "lost", TabForStatus(models.RoleSales, models.LeadStatusLost).Key)
	assert.Equal(t, "assigned", TabForStatus(models.RoleSales, models.LeadStatusNew).Key)
}

func TestFilterLeads_SearchIsCaseInsensitive(t *testing.T) {
	leads := sampleLeads()

	assert.Len(t, FilterLeads(leads, models.LeadStatusAssigned, ""), 2)

	found := FilterLeads(leads, models.LeadStatusAssigned, "ASHA")
	require.Len(t, found, 1)
	assert.Equal(t, "Asha Rao", found[0].Name)

	assert.Empty(t, FilterLeads(leads, models.LeadStatusAssigned, "chitra"))
	assert.Len(t, FilterLeads(leads, models.LeadStatusAssigned, "alice"), 2)
}

func TestFilterLeads_SearchesNumbersAndDates(t *testing.T) {
	leads := sampleLeads()
	leads[0].ExpectedBudget = utils.ToPtr(1500000.0)
	leads[1].ExpectedBudget = utils.ToPtr(2750000.5)
	next := time.Date(2024, 6, 3, 11, 30, 0, 0, time.UTC)
	leads[1].NextCall = &next

	found := FilterLeads(leads, models.LeadStatusAssigned, "1500000")
	require.Len(t, found, 1)
	assert.Equal(t, "Asha Rao", found[0].Name)

	found = FilterLeads(leads, models.LeadStatusAssigned, "2750000.5")
	require.Len(t, found, 1)
	assert.Equal(t, "Bharat Shah", found[0].Name)

	found = FilterLeads(leads, models.LeadStatusAssigned, "2024-06-03")
	require.Len(t, found, 1)
	assert.Equal(t, "Bharat Shah", found[0].Name)

	converted := testutil.NewTestLead(models.LeadStatusConverted)
	assert.Len(t, FilterLeads([]models.Lead{converted}, models.LeadStatusConverted, *converted.PaymentDate), 1)
}

func TestBuildTabs_CountsIgnoreSearch(t *testing.T) {
	d := newFlowDeps(t)
	leads := sampleLeads()
	d.store.On("ListLeads", mock.Anything).Return(leads, nil)
	flow := d.leadFlow()

	all, err := flow.ListLeads(testutil.CreateTestContext(), &dto.ListLeadsRequest{Tab: "assigned"}, testManager)
	require.NoError(t, err)
	filtered, err := flow.ListLeads(testutil.CreateTestContext(), &dto.ListLeadsRequest{Tab: "assigned", Search: "bharat"}, testManager)
	require.NoError(t, err)

	assert.Len(t, all.Leads, 2)
	assert.Len(t, filtered.Leads, 1)
	assert.Equal(t, 2, tabCount(all.Tabs, "assigned"))
	assert.Equal(t, 2, tabCount(filtered.Tabs, "assigned"))
	assert.Equal(t, 1, tabCount(filtered.Tabs, "new"))
	assert.Equal(t, 1, tabCount(filtered.Tabs, "in-progress"))
}

func TestListLeads_UnknownTab(t *testing.T) {
	d := newFlowDeps(t)
	_, err := d.leadFlow().ListLeads(testutil.CreateTestContext(), &dto.ListLeadsRequest{Tab: "new"}, testSales)
	assert.True(t, IsValidationError(err))
	d.store.AssertNotCalled(t, "ListLeads", mock.Anything)
}
