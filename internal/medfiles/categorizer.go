package medfiles

import (
	"strings"

	"medical-files-server/internal/models"
)

type categoryRule struct {
	category models.Category
	patterns []string
}

// Rules are tried in order; the first matching pattern decides.
var categoryRules = []categoryRule{
	{models.CategoryInsurance, []string{"insurance", "card", "coverage"}},
	{models.CategoryLabResults, []string{"lab", "blood", "test", "result"}},
	{models.CategoryPrescription, []string{"prescription", "medication", "rx"}},
	{models.CategoryMedicalRecords, []string{"record", "report", "history", "referral"}},
}

// Categorize maps a file name to a category. A valid hint takes precedence
// over the name rules.
func Categorize(fileName, hint string) models.Category {
	if c := models.Category(strings.ToLower(strings.TrimSpace(hint))); c.Valid() {
		return c
	}

	name := strings.ToLower(fileName)
	for _, rule := range categoryRules {
		for _, p := range rule.patterns {
			if strings.Contains(name, p) {
				return rule.category
			}
		}
	}
	return models.CategoryOther
}
