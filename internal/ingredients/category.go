package ingredients

import (
	"math"
	"strings"
)

type categoryKeywords struct {
	name     string
	keywords []string
}

// Checked in order; the first category with a matching keyword wins.
var categories = []categoryKeywords{
	{"oils", []string{"oil"}},
	{"sauces", []string{"sauce", "worcestershire", "ketchup"}},
	{"pastes", []string{"paste", "gochujang", "tahini", "pesto"}},
	{"spices", []string{"salt", "pepper", "paprika", "cumin", "coriander", "turmeric", "cinnamon", "nutmeg"}},
	{"herbs", []string{"basil", "oregano", "thyme", "rosemary", "parsley", "cilantro", "mint", "sage"}},
	{"dairy_liquid", []string{"milk", "cream", "buttermilk", "yogurt"}},
	{"dairy_solid", []string{"cheese", "butter"}},
	{"meat", []string{"chicken", "beef", "pork", "lamb", "turkey", "bacon", "sausage", "thigh", "breast"}},
	{"vegetables", []string{"onion", "carrot", "potato", "tomato", "bell pepper", "garlic", "ginger"}},
	{"fruits", []string{"apple", "banana", "lemon", "lime", "orange", "berries"}},
	{"grains", []string{"rice", "flour", "pasta", "quinoa", "oats", "bread"}},
	{"canned", []string{"canned", "tinned", "tin of", "can of"}},
	{"frozen", []string{"frozen"}},
}

// Category classifies an ingredient name by keyword, defaulting to "other".
func Category(name string) string {
	n := strings.ToLower(name)
	for _, c := range categories {
		for _, kw := range c.keywords {
			if strings.Contains(n, kw) {
				return c.name
			}
		}
	}
	return "other"
}

// Packaging describes how a category is sold in shops.
type Packaging struct {
	Package     string `json:"package"`
	TypicalSize string `json:"typicalSize"`
	BuyWhole    bool   `json:"buyWhole"`
}

var packaging = map[string]Packaging{
	"oils":         {"bottle", "500ml", true},
	"vinegars":     {"bottle", "500ml", true},
	"sauces":       {"bottle", "250ml", true},
	"pastes":       {"jar", "200g", true},
	"spices":       {"jar", "50g", true},
	"herbs":        {"packet", "20g", true},
	"extracts":     {"bottle", "50ml", true},
	"dairy_liquid": {"carton", "1L", false},
	"dairy_solid":  {"pack", "250g", false},
	"meat":         {"pack", "500g", false},
	"vegetables":   {"bag", "1kg", false},
	"fruits":       {"bag", "1kg", false},
	"grains":       {"bag", "1kg", false},
	"canned":       {"can", "400g", false},
	"frozen":       {"bag", "500g", false},
}

// PackageFor returns the packaging rule for a category.
func PackageFor(category string) Packaging {
	if p, ok := packaging[category]; ok {
		return p
	}
	return Packaging{Package: "item", TypicalSize: "1 unit"}
}

// PurchaseAmount converts a recipe amount into what to actually buy. Bottles,
// jars and packets are bought whole; weighed goods are rounded up to half
// kilos; chicken pieces come in packs of six.
func PurchaseAmount(ing Ingredient, product string, pkg Packaging) (float64, string) {
	switch pkg.Package {
	case "bottle", "jar", "packet":
		return 1, pkg.Package
	case "bag", "pack", "carton":
		switch {
		case weightUnits[ing.Unit]:
			if ing.Unit == "g" {
				kg := math.Max(0.5, math.Round(ing.Quantity/1000*2*10)/10)
				return kg, "kg"
			}
			if ing.Unit == "kg" {
				return math.Max(0.5, math.Round(ing.Quantity*10)/10), "kg"
			}
			return math.Max(1, math.Round(ing.Quantity)), "pack"
		case liquidUnits[ing.Unit]:
			return 1, "carton"
		case countUnits[ing.Unit]:
			if strings.Contains(strings.ToLower(product), "chicken") {
				return math.Max(1, math.Round(ing.Quantity/6)), "pack"
			}
		}
	}
	return math.Max(1, math.Trunc(ing.Quantity)), pkg.Package
}

// ShoppingItem is a purchasable product derived from a recipe line.
type ShoppingItem struct {
	ProductName string     `json:"productName"`
	Quantity    float64    `json:"quantity"`
	Unit        string     `json:"unit"`
	Category    string     `json:"category"`
	Package     Packaging  `json:"package"`
	Ingredient  Ingredient `json:"ingredient"`
}

// Map converts one ingredient line into a shopping item.
func Map(line string) ShoppingItem {
	ing := Parse(line)
	category := Category(ing.Name)
	if ing.Unit == "can" && category != "canned" {
		category = "canned"
	}
	product := ProductName(ing.Name)
	pkg := PackageFor(category)
	qty, unit := PurchaseAmount(ing, product, pkg)
	return ShoppingItem{
		ProductName: product,
		Quantity:    qty,
		Unit:        unit,
		Category:    category,
		Package:     pkg,
		Ingredient:  ing,
	}
}

// FromRecipe maps every ingredient line of a recipe, skipping blanks and
// fragments shorter than three characters.
func FromRecipe(text string) []ShoppingItem {
	var items []ShoppingItem
	for _, line := range Lines(text) {
		if len(line) < 3 {
			continue
		}
		items = append(items, Map(line))
	}
	return items
}

// Lines splits ingredient text into trimmed, non-empty lines, dropping list bullets.
func Lines(text string) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*•"))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// ListUnit maps a parsed unit onto the small vocabulary used by shopping lists.
func ListUnit(unit string) string {
	switch unit {
	case "tsp", "tbsp", "cup", "g", "kg", "ml", "l", "oz", "lb":
		return unit
	case "item", "clove", "slice", "bulb":
		return "pieces"
	}
	return "units"
}

var (
	brandPrefixes = []string{"own brand ", "store brand ", "taste the difference ", "value ", "basic ", "finest "}
	packSuffixes  = []string{" multipack", " bundle", " pack"}
	nameFixes     = strings.NewReplacer("semi skimmed milk", "semi-skimmed milk")
)

var pluralFixes = map[string]string{"potato": "potatoes", "onion": "onions"}

// Normalize canonicalises a product name so that shelf-label variants of the
// same item group together.
func Normalize(name string) string {
	n := strings.ToLower(reSpaces.ReplaceAllString(strings.TrimSpace(name), " "))
	for _, p := range brandPrefixes {
		n = strings.TrimPrefix(n, p)
	}
	for _, s := range packSuffixes {
		n = strings.TrimSuffix(n, s)
	}
	n = nameFixes.Replace(n)
	words := strings.Fields(n)
	for i, w := range words {
		if fixed, ok := pluralFixes[w]; ok {
			words[i] = fixed
		}
	}
	return strings.Join(words, " ")
}
