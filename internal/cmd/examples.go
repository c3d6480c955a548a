package cmd

import (
	"math/rand"
	"regexp"

	"github.com/dotcommander/recipe-finder/internal/present"
)

var examples = map[string]string{
	"Find a weeknight dinner":        `recipe-finder "chicken thighs under 30 minutes, high ratings"`,
	"Stream events to another tool":  `recipe-finder --json "vegan lasagna" | jq -r 'select(.type == "result") | .text'`,
	"Use a different model":          `recipe-finder -m sonnet "gluten free banana bread"`,
	"Search from a pantry inventory": `cat pantry.txt | recipe-finder "what can I cook with these?"`,
}

func randomExample() string {
	keys := make([]string, 0, len(examples))
	for k := range examples {
		keys = append(keys, k)
	}
	desc := keys[rand.Intn(len(keys))] //nolint:gosec
	return desc
}

func cheapHighlighting(s present.Styles, code string) string {
	code = regexp.
		MustCompile(`"([^"\\]|\\.)*"`).
		ReplaceAllStringFunc(code, func(x string) string {
			return s.Quote.Render(x)
		})
	code = regexp.
		MustCompile(`\|`).
		ReplaceAllStringFunc(code, func(x string) string {
			return s.Pipe.Render(x)
		})
	return code
}
