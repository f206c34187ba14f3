package spoonacular

// RecipeSummary is the listing shape; ID is the equality key.
type RecipeSummary struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Image string `json:"image"`
}

type Ingredient struct {
	ID       int    `json:"id"`
	Original string `json:"original"`
}

type Step struct {
	Number int    `json:"number"`
	Step   string `json:"step"`
}

type InstructionSet struct {
	Name  string `json:"name"`
	Steps []Step `json:"steps"`
}

type RecipeDetail struct {
	ID                   int              `json:"id"`
	Title                string           `json:"title"`
	Image                string           `json:"image"`
	Summary              string           `json:"summary"`      // HTML
	Instructions         string           `json:"instructions"` // HTML, may be empty
	ExtendedIngredients  []Ingredient     `json:"extendedIngredients"`
	AnalyzedInstructions []InstructionSet `json:"analyzedInstructions"`
	ReadyInMinutes       int              `json:"readyInMinutes"`
	Servings             int              `json:"servings"`
	SourceURL            string           `json:"sourceUrl"`
}

// Brief trims a detail down to what favorites persist.
func (d RecipeDetail) Brief() RecipeSummary {
	return RecipeSummary{ID: d.ID, Title: d.Title, Image: d.Image}
}

// Steps returns the first analyzed instruction set's steps, which is all the
// API fills in for most recipes.
func (d RecipeDetail) Steps() []Step {
	if len(d.AnalyzedInstructions) == 0 {
		return nil
	}
	return d.AnalyzedInstructions[0].Steps
}

type searchResponse struct {
	Results      []RecipeSummary `json:"results"`
	Offset       int             `json:"offset"`
	Number       int             `json:"number"`
	TotalResults int             `json:"totalResults"`
}
