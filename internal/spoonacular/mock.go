package spoonacular

import (
	"context"
	"strconv"
	"strings"
)

type mock struct{}

var mockRecipes = map[string][]RecipeSummary{
	"breakfast": {
		{ID: 636087, Title: "Breakfast Egg Muffins", Image: "https://img.spoonacular.com/recipes/636087-312x231.jpg"},
		{ID: 665527, Title: "Yogurt Parfait", Image: "https://img.spoonacular.com/recipes/665527-312x231.jpg"},
	},
	"lunch,dinner": {
		{ID: 715538, Title: "Bruschetta Style Pork & Pasta", Image: "https://img.spoonacular.com/recipes/715538-312x231.jpg"},
		{ID: 782585, Title: "Cannellini Bean and Sausage Soup", Image: "https://img.spoonacular.com/recipes/782585-312x231.jpg"},
	},
	"dessert": {
		{ID: 639637, Title: "Classic Tiramisu", Image: "https://img.spoonacular.com/recipes/639637-312x231.jpg"},
	},
	"drink,beverage": {
		{ID: 1096249, Title: "Strawberry Banana Smoothie", Image: "https://img.spoonacular.com/recipes/1096249-312x231.jpg"},
	},
}

func (mock) SearchByCategory(_ context.Context, query, apiKey string) ([]RecipeSummary, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &StatusError{Operation: "complexSearch", StatusCode: 401, Body: "You are not authorized."}
	}
	recipes, ok := mockRecipes[query]
	if !ok {
		return []RecipeSummary{}, nil
	}
	return append([]RecipeSummary(nil), recipes...), nil
}

func (mock) GetDetail(_ context.Context, id int, apiKey string) (*RecipeDetail, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &StatusError{Operation: "information", StatusCode: 401, Body: "You are not authorized."}
	}
	for _, recipes := range mockRecipes {
		for _, r := range recipes {
			if r.ID != id {
				continue
			}
			return &RecipeDetail{
				ID:      r.ID,
				Title:   r.Title,
				Image:   r.Image,
				Summary: "<b>" + r.Title + "</b> is a <i>mock</i> recipe that takes about 30 minutes.",
				ExtendedIngredients: []Ingredient{
					{ID: 1, Original: "1 cup of something"},
					{ID: 2, Original: "2 tbsp of something else"},
				},
				Instructions: "<ol><li>Mix.</li><li>Cook.</li></ol>",
				AnalyzedInstructions: []InstructionSet{{Steps: []Step{
					{Number: 1, Step: "Mix"},
					{Number: 2, Step: "Cook"},
				}}},
				ReadyInMinutes: 30,
				Servings:       2,
			}, nil
		}
	}
	return nil, &StatusError{Operation: "information", StatusCode: 404, Body: "A recipe with the id " + strconv.Itoa(id) + " does not exist."}
}
