package model

import "strings"

// Category classifies a billed line item.
type Category string

const (
	CategoryRoom         Category = "room"
	CategoryProcedure    Category = "procedure"
	CategoryLab          Category = "lab"
	CategoryMedication   Category = "medication"
	CategorySupply       Category = "supply"
	CategoryImaging      Category = "imaging"
	CategoryTherapy      Category = "therapy"
	CategoryConsultation Category = "consultation"
	CategoryOther        Category = "other"
)

// AllCategories lists the supported categories in canonical order.
var AllCategories = []Category{
	CategoryRoom,
	CategoryProcedure,
	CategoryLab,
	CategoryMedication,
	CategorySupply,
	CategoryImaging,
	CategoryTherapy,
	CategoryConsultation,
	CategoryOther,
}

// CategoryByName returns the Category for the given name, or ok=false.
// Matching ignores case and surrounding whitespace.
func CategoryByName(name string) (Category, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, c := range AllCategories {
		if string(c) == name {
			return c, true
		}
	}
	return "", false
}
