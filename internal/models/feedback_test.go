package models_test

import (
	"testing"

	"helpline/backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// TestFeedbackBeforeCreate_GeneratesUUID verifies that the BeforeCreate hook generates a valid UUID.
func TestFeedbackBeforeCreate_GeneratesUUID(t *testing.T) {
	fb := &models.Feedback{
		OperatorID:      123456789,
		OperatorLocalID: 7,
		EndedAt:         1700000000,
		Mood:            models.MoodBetter,
	}

	assert.Empty(t, fb.ID, "Feedback ID should be empty before BeforeCreate")

	err := fb.BeforeCreate(nil) // nil *gorm.DB is acceptable for this hook

	assert.NoError(t, err)
	assert.NotEmpty(t, fb.ID)

	parsedUUID, parseErr := uuid.Parse(fb.ID)
	assert.NoError(t, parseErr, "Feedback ID must be a valid UUID string")
	assert.NotEqual(t, uuid.Nil, parsedUUID)
}

// TestFeedbackBeforeCreate_PreservesExistingID verifies that the hook doesn't overwrite an existing ID.
func TestFeedbackBeforeCreate_PreservesExistingID(t *testing.T) {
	existingID := uuid.New().String()
	fb := &models.Feedback{
		ID:         existingID,
		OperatorID: 123456789,
		EndedAt:    1700000000,
	}

	err := fb.BeforeCreate(nil)

	assert.NoError(t, err)
	assert.Equal(t, existingID, fb.ID, "BeforeCreate should preserve existing ID")
}
