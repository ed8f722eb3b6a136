package models

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

func TestLeadStatusHistory_SchemaParses(t *testing.T) {
	s, err := schema.Parse(&LeadStatusHistory{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)

	field := s.LookUpField("ChangedFields")
	require.NotNil(t, field)
	assert.Equal(t, schema.DataType("text"), field.DataType)
}

func TestLeadStatusHistory_ChangedFieldsRoundTrip(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&LeadStatusHistory{}))

	row := &LeadStatusHistory{
		LeadID:        "lead-1",
		FromStatus:    LeadStatusVerified,
		ToStatus:      LeadStatusConverted,
		ActorName:     "Meera",
		ActorRole:     RoleManager,
		ChangedFields: FieldList{"status", "signupAmount", "paymentDate"},
	}
	require.NoError(t, db.Create(row).Error)

	var got LeadStatusHistory
	require.NoError(t, db.First(&got, row.ID).Error)
	assert.Equal(t, FieldList{"status", "signupAmount", "paymentDate"}, got.ChangedFields)
}
