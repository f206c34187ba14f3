package catalog

import "recipebox/internal/spoonacular"

// Category is a home screen row. Query may join several Spoonacular terms with commas.
type Category struct {
	Label string
	Query string
}

// DefaultCategories is the home screen order.
var DefaultCategories = []Category{
	{Label: "Breakfast", Query: "breakfast"},
	{Label: "Lunch & Dinner", Query: "lunch,dinner"},
	{Label: "Dessert", Query: "dessert"},
	{Label: "Drinks & Beverages", Query: "drink,beverage"},
}

type Section struct {
	Label   string
	Recipes []spoonacular.RecipeSummary
}

// Result holds one section per category in enumeration order.
type Result struct {
	Sections []Section
}

// Lookup returns the recipes for a category label.
func (r *Result) Lookup(label string) ([]spoonacular.RecipeSummary, bool) {
	if r == nil {
		return nil, false
	}
	for _, s := range r.Sections {
		if s.Label == label {
			return s.Recipes, true
		}
	}
	return nil, false
}
