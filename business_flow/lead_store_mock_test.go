package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/leadflow/app/services"
	"github.com/amirphl/leadflow/models"
	"github.com/amirphl/leadflow/repository"
	testutil "github.com/amirphl/leadflow/testing"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockLeadStore struct {
	mock.Mock
}

func (m *MockLeadStore) ListLeads(ctx context.Context) ([]models.Lead, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Lead), args.Error(1)
}

func (m *MockLeadStore) GetLead(ctx context.Context, leadID string) (*models.Lead, error) {
	args := m.Called(ctx, leadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Lead), args.Error(1)
}

func (m *MockLeadStore) CreateLead(ctx context.Context, lead models.Lead) (*models.Lead, error) {
	args := m.Called(ctx, lead)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Lead), args.Error(1)
}

func (m *MockLeadStore) UpdateLead(ctx context.Context, leadID string, lead models.Lead) (*models.Lead, error) {
	args := m.Called(ctx, leadID, lead)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Lead), args.Error(1)
}

func (m *MockLeadStore) UpdateLeadWithDocs(ctx context.Context, leadID string, lead models.Lead, files []services.UploadFile) (*models.Lead, error) {
	args := m.Called(ctx, leadID, lead, files)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Lead), args.Error(1)
}

func (m *MockLeadStore) ConvertWithDocs(ctx context.Context, leadID string, lead models.Lead, files []services.UploadFile) (*models.Lead, error) {
	args := m.Called(ctx, leadID, lead, files)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Lead), args.Error(1)
}

func (m *MockLeadStore) AdvanceStage(ctx context.Context, leadID, stageID string) error {
	args := m.Called(ctx, leadID, stageID)
	return args.Error(0)
}

// sentLead returns the record passed to the first call of method
func (m *MockLeadStore) sentLead(t *testing.T, method string) models.Lead {
	t.Helper()
	for _, c := range m.Calls {
		if c.Method == method {
			return c.Arguments.Get(2).(models.Lead)
		}
	}
	t.Fatalf("%s was not called", method)
	return models.Lead{}
}

type flowDeps struct {
	store       *MockLeadStore
	historyRepo repository.LeadStatusHistoryRepository
	auditRepo   repository.AuditLogRepository
	db          *testutil.TestDB
}

func newFlowDeps(t *testing.T) *flowDeps {
	t.Helper()
	tdb, err := testutil.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = tdb.TeardownTestDB() })

	return &flowDeps{
		store:       new(MockLeadStore),
		historyRepo: repository.NewLeadStatusHistoryRepository(tdb.DB),
		auditRepo:   repository.NewAuditLogRepository(tdb.DB),
		db:          tdb,
	}
}

func (d *flowDeps) leadFlow() *LeadFlowImpl {
	f := NewLeadFlow(d.store, d.historyRepo, d.auditRepo).(*LeadFlowImpl)
	f.now = fixedNow
	return f
}

// expectLoadAndRefresh stubs the load of current and a re-fetch returning after
func (d *flowDeps) expectLoadAndRefresh(current models.Lead, after models.Lead) {
	d.store.On("GetLead", mock.Anything, current.LeadID).Return(&current, nil).Once()
	d.store.On("ListLeads", mock.Anything).Return([]models.Lead{after}, nil).Maybe()
}

func fixedNow() time.Time {
	return time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
}

var (
	testManager = Actor{Name: "Meera", Role: models.RoleManager}
	testSales   = Actor{Name: "Alice", Role: models.RoleSales}
)
