package recipe

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Ingredient is one line of a recipe's ingredient list.
type Ingredient struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Original string  `json:"original"`
	Amount   float64 `json:"amount"`
	Unit     string  `json:"unit"`
}

// Detail is the full recipe information returned by the recipe service.
type Detail struct {
	ID                  int          `json:"id"`
	Title               string       `json:"title"`
	Image               string       `json:"image"`
	ReadyInMinutes      int          `json:"readyInMinutes"`
	Servings            int          `json:"servings"`
	SourceURL           string       `json:"sourceUrl"`
	Summary             string       `json:"summary"`
	Instructions        string       `json:"instructions"`
	Vegetarian          bool         `json:"vegetarian"`
	Vegan               bool         `json:"vegan"`
	GlutenFree          bool         `json:"glutenFree"`
	DairyFree           bool         `json:"dairyFree"`
	ExtendedIngredients []Ingredient `json:"extendedIngredients"`
}

// Diets lists the dietary flags set on the recipe, in display order.
func (d Detail) Diets() []string {
	var diets []string
	if d.Vegetarian {
		diets = append(diets, "Vegetarian")
	}
	if d.Vegan {
		diets = append(diets, "Vegan")
	}
	if d.GlutenFree {
		diets = append(diets, "Gluten free")
	}
	if d.DairyFree {
		diets = append(diets, "Dairy free")
	}
	return diets
}

// View is the cleaned, render-ready form of a Detail.
type View struct {
	Detail
	SummaryText string
	Steps       []string
}

// NewView strips markup from the summary and instructions of d.
func NewView(d Detail) View {
	return View{
		Detail:      d,
		SummaryText: Clean(d.Summary),
		Steps:       Steps(d.Instructions),
	}
}

// Clean returns the visible text of an HTML fragment with scripts and styles
// removed and whitespace collapsed.
func Clean(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}

	// Remove noise before reading text
	doc.Find("script, style, iframe").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	return strings.Join(strings.Fields(doc.Text()), " ")
}

// Steps splits instructions into individual steps. List items become steps
// when present; otherwise non-empty lines of the cleaned text are used.
func Steps(instructions string) []string {
	if strings.TrimSpace(instructions) == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(instructions))
	if err != nil {
		return []string{Clean(instructions)}
	}

	var steps []string
	doc.Find("li").Each(func(i int, s *goquery.Selection) {
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			steps = append(steps, text)
		}
	})
	if len(steps) > 0 {
		return steps
	}

	doc.Find("script, style").Remove()
	for _, line := range strings.Split(doc.Text(), "\n") {
		if text := strings.Join(strings.Fields(line), " "); text != "" {
			steps = append(steps, text)
		}
	}
	return steps
}
