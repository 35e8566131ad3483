package medfiles

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"medical-files-server/internal/models"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		file string
		hint string
		want models.Category
	}{
		{"bloodwork.pdf", "", models.CategoryLabResults},
		{"insurance_card.png", "", models.CategoryInsurance},
		{"INSURANCE_Report.pdf", "", models.CategoryInsurance},
		{"coverage-2026.pdf", "", models.CategoryInsurance},
		{"Test_Results.pdf", "", models.CategoryLabResults},
		{"lab_report.pdf", "", models.CategoryLabResults},
		{"prescription_history.pdf", "", models.CategoryPrescription},
		{"rx-refill.jpg", "", models.CategoryPrescription},
		{"medication_list.docx", "", models.CategoryPrescription},
		{"referral_letter.doc", "", models.CategoryMedicalRecords},
		{"discharge_report.pdf", "", models.CategoryMedicalRecords},
		{"photo.jpg", "", models.CategoryOther},
		{"", "", models.CategoryOther},
		{"photo.jpg", "prescription", models.CategoryPrescription},
		{"bloodwork.pdf", " Insurance ", models.CategoryInsurance},
		{"bloodwork.pdf", "bogus", models.CategoryLabResults},
	}

	for _, tc := range tests {
		t.Run(tc.file+"/"+tc.hint, func(t *testing.T) {
			assert.Equal(t, tc.want, Categorize(tc.file, tc.hint))
		})
	}
}

func TestCategorize_InsuranceAlwaysWins(t *testing.T) {
	for _, name := range []string{
		"insurance.pdf",
		"my-Insurance-lab-report.pdf",
		"rx_INSURANCE_history.txt",
		"record_insurance_test.png",
	} {
		assert.Equal(t, models.CategoryInsurance, Categorize(name, ""), name)
	}
}
