package testing

import (
	"fmt"
	"math/rand"

	"github.com/amirphl/leadflow/models"
	"github.com/amirphl/leadflow/utils"
	"github.com/google/uuid"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// NewTestLead builds an upstream lead in the given status with a random id and contact number
func NewTestLead(status models.LeadStatus) models.Lead {
	randomDigits := fmt.Sprintf("%09d", rand.Intn(900000000)+100000000)
	lead := models.Lead{
		LeadID:         fmt.Sprintf("lead-%s", uuid.NewString()[:8]),
		Name:           "Test Lead",
		ContactNumber:  utils.ToPtr("9" + randomDigits),
		Email:          utils.ToPtr(fmt.Sprintf("lead.%s@example.com", randomDigits)),
		PropertyType:   utils.ToPtr(models.PropertyType2BHK),
		ProjectAddress: utils.ToPtr("12 Test Street, Bengaluru"),
		ExpectedBudget: utils.ToPtr(1500000.0),
		Status:         status,
	}

	switch status {
	case models.LeadStatusNew:
	case models.LeadStatusLost:
		lead.SalesRep = utils.ToPtr("Alice")
		lead.ReasonForLost = utils.ToPtr(models.LostReasonBudget)
	case models.LeadStatusJunk:
		lead.SalesRep = utils.ToPtr("Alice")
		lead.ReasonForJunk = utils.ToPtr("")
	case models.LeadStatusConverted:
		lead.SalesRep = utils.ToPtr("Alice")
		lead.SignupAmount = utils.ToPtr(250000.0)
		lead.PaymentDate = utils.ToPtr("2024-05-01")
	default:
		lead.SalesRep = utils.ToPtr("Alice")
	}

	return lead
}

// CreateTestStatusHistory creates a status history row for a lead
func (tf *TestFixtures) CreateTestStatusHistory(leadID string, from, to models.LeadStatus, success bool) (*models.LeadStatusHistory, error) {
	row := &models.LeadStatusHistory{
		LeadID:        leadID,
		FromStatus:    from,
		ToStatus:      to,
		ActorName:     "Test Manager",
		ActorRole:     models.RoleManager,
		ChangedFields: []string{string(models.FieldStatus)},
		Success:       &success,
	}

	if !success {
		errorMessage := "Test failed transition"
		row.ErrorMessage = &errorMessage
	}

	if err := tf.DB.DB.Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to create test status history: %w", err)
	}

	return row, nil
}

// CreateTestAuditLog creates a test audit log entry
func (tf *TestFixtures) CreateTestAuditLog(leadID *string, action string, success bool) (*models.AuditLog, error) {
	description := fmt.Sprintf("Test %s action", action)
	ipAddress := "127.0.0.1"
	userAgent := "Test User Agent"
	actor := "Test Manager"

	audit := &models.AuditLog{
		ActorName:   &actor,
		LeadID:      leadID,
		Action:      action,
		Description: &description,
		Success:     &success,
		IPAddress:   &ipAddress,
		UserAgent:   &userAgent,
	}

	if !success {
		errorMessage := "Test failed action"
		audit.ErrorMessage = &errorMessage
	}

	if err := tf.DB.DB.Create(audit).Error; err != nil {
		return nil, fmt.Errorf("failed to create test audit log: %w", err)
	}

	return audit, nil
}
