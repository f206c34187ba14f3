package narrator

import (
	"fmt"
	"strings"

	"recipebox/internal/html"
	"recipebox/internal/spoonacular"
)

// Script is the text read aloud for a recipe: title and summary, then
// ingredients, instructions and numbered steps when the recipe has them.
func Script(d *spoonacular.RecipeDetail) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s. %s.", d.Title, html.StripTags(d.Summary))

	if len(d.ExtendedIngredients) > 0 {
		originals := make([]string, 0, len(d.ExtendedIngredients))
		for _, ing := range d.ExtendedIngredients {
			originals = append(originals, ing.Original)
		}
		fmt.Fprintf(&b, " Ingredients: %s.", strings.Join(originals, ". "))
	}

	if d.Instructions != "" {
		fmt.Fprintf(&b, " Instructions: %s.", html.StripTags(d.Instructions))
	}

	if steps := d.Steps(); len(steps) > 0 {
		b.WriteString(" Steps: ")
		for _, s := range steps {
			fmt.Fprintf(&b, "Step %d: %s. ", s.Number, s.Step)
		}
	}
	return b.String()
}
