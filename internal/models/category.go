package models

import (
	"errors"
	"fmt"
)

// ErrInvalidCategory is returned for values outside the Category enum.
var ErrInvalidCategory = errors.New("invalid category")

// Category classifies a medical file's purpose. It is assigned once at upload.
type Category string

const (
	CategoryLabResults     Category = "lab_results"
	CategoryInsurance      Category = "insurance"
	CategoryPrescription   Category = "prescription"
	CategoryMedicalRecords Category = "medical_records"
	CategoryOther          Category = "other"
)

// CategoryInfo is the display data attached to a Category.
type CategoryInfo struct {
	Category        Category `json:"category"`
	Label           string   `json:"label"`
	DisplayPriority int      `json:"display_priority"`
	Color           string   `json:"color"`
}

// Info returns the display data for c. ok is false for values outside the enum.
func (c Category) Info() (info CategoryInfo, ok bool) {
	switch c {
	case CategoryLabResults:
		return CategoryInfo{c, "Lab Results", 1, "blue"}, true
	case CategoryInsurance:
		return CategoryInfo{c, "Insurance", 2, "green"}, true
	case CategoryPrescription:
		return CategoryInfo{c, "Prescriptions", 3, "purple"}, true
	case CategoryMedicalRecords:
		return CategoryInfo{c, "Medical Records", 4, "amber"}, true
	case CategoryOther:
		return CategoryInfo{c, "Other", 5, "gray"}, true
	}
	return CategoryInfo{}, false
}

// Valid reports whether c is one of the enumerated categories.
func (c Category) Valid() bool {
	_, ok := c.Info()
	return ok
}

// Categories returns every category in display order.
func Categories() []Category {
	return []Category{
		CategoryLabResults,
		CategoryInsurance,
		CategoryPrescription,
		CategoryMedicalRecords,
		CategoryOther,
	}
}

// ParseCategory converts s to a Category, rejecting unknown values.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
	return c, nil
}
