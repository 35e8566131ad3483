package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryInfo(t *testing.T) {
	tests := []struct {
		category Category
		label    string
		priority int
		color    string
	}{
		{CategoryLabResults, "Lab Results", 1, "blue"},
		{CategoryInsurance, "Insurance", 2, "green"},
		{CategoryPrescription, "Prescriptions", 3, "purple"},
		{CategoryMedicalRecords, "Medical Records", 4, "amber"},
		{CategoryOther, "Other", 5, "gray"},
	}

	for _, tc := range tests {
		t.Run(string(tc.category), func(t *testing.T) {
			info, ok := tc.category.Info()
			require.True(t, ok)
			assert.Equal(t, tc.label, info.Label)
			assert.Equal(t, tc.priority, info.DisplayPriority)
			assert.Equal(t, tc.color, info.Color)
		})
	}
}

func TestCategoryInfo_UnknownDoesNotDefault(t *testing.T) {
	_, ok := Category("lab_result").Info()
	assert.False(t, ok)
	assert.False(t, Category("").Valid())
}

func TestCategories_DisplayOrder(t *testing.T) {
	prev := 0
	for _, c := range Categories() {
		info, ok := c.Info()
		require.True(t, ok)
		assert.Greater(t, info.DisplayPriority, prev)
		prev = info.DisplayPriority
	}
	assert.Len(t, Categories(), 5)
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("insurance")
	require.NoError(t, err)
	assert.Equal(t, CategoryInsurance, c)

	_, err = ParseCategory("Insurance")
	assert.ErrorIs(t, err, ErrInvalidCategory)
}
