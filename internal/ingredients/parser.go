// Package ingredients turns free-text recipe ingredient lines into structured,
// purchasable shopping items.
package ingredients

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Ingredient is one parsed recipe line.
type Ingredient struct {
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
	Size     string  `json:"size,omitempty"`
	Name     string  `json:"name"`
	Original string  `json:"original"`
	// HasQuantity is false when the line carried no leading amount.
	HasQuantity bool `json:"hasQuantity"`
}

const qtyPattern = `(\d+\s+\d+/\d+|\d+/\d+|\d+(?:\.\d+)?)(?:\s*-\s*\d+(?:\.\d+)?)?`

var (
	unitPattern = `(tsp|teaspoons?|tbsp|tablespoons?|cups?|ml|cl|l|litres?|liters?|fl\.?\s*oz|fluid\s*ounces?|pints?|g|grams?|kg|kilograms?|oz|ounces?|lbs?|pounds?|cloves?|slices?|pieces?|bulbs?|cans?|tins?)\.?`

	reQtyUnit  = regexp.MustCompile(`(?i)^` + qtyPattern + `\s*` + unitPattern + `\s+(?:of\s+)?(.+)$`)
	reQtySize  = regexp.MustCompile(`(?i)^` + qtyPattern + `\s+(large|medium|small|whole|thick|thin)\s+(.+)$`)
	reQtyName  = regexp.MustCompile(`(?i)^` + qtyPattern + `\s+(.+)$`)
	reMeasure  = regexp.MustCompile(`(?i)^(?:a|an)\s+(pinch|handful|dash|splash)\s+(?:of\s+)?(.+)$`)
	reLeadQty  = regexp.MustCompile(`^` + qtyPattern)
	reSpaces   = regexp.MustCompile(`\s+`)
	reParens   = regexp.MustCompile(`\([^)]*\)`)
	rePrep     = regexp.MustCompile(`(?i)\b(fresh|dried|ground|chopped|sliced|diced|minced|crushed|grated)\b`)
	reSize     = regexp.MustCompile(`(?i)\b(large|medium|small|thick|thin)\b`)
	reFillers  = regexp.MustCompile(`(?i)\b(boneless|skinless|and)\b`)
	fractionRe = strings.NewReplacer("½", " 1/2", "¼", " 1/4", "¾", " 3/4", "⅓", " 1/3", "⅔", " 2/3", "⅛", " 1/8")
)

var unitAliases = map[string]string{
	"tsp": "tsp", "teaspoon": "tsp", "teaspoons": "tsp",
	"tbsp": "tbsp", "tablespoon": "tbsp", "tablespoons": "tbsp",
	"cup": "cup", "cups": "cup",
	"ml": "ml", "cl": "cl", "l": "l", "litre": "l", "litres": "l", "liter": "l", "liters": "l",
	"floz": "fl oz", "fl.oz": "fl oz", "fluidounce": "fl oz", "fluidounces": "fl oz",
	"pint": "pint", "pints": "pint",
	"g": "g", "gram": "g", "grams": "g",
	"kg": "kg", "kilogram": "kg", "kilograms": "kg",
	"oz": "oz", "ounce": "oz", "ounces": "oz",
	"lb": "lb", "lbs": "lb", "pound": "lb", "pounds": "lb",
	"clove": "clove", "cloves": "clove",
	"slice": "slice", "slices": "slice",
	"piece": "item", "pieces": "item",
	"bulb": "bulb", "bulbs": "bulb",
	"can": "can", "cans": "can", "tin": "can", "tins": "can",
}

// Unit families used to decide purchase amounts.
var (
	weightUnits = map[string]bool{"g": true, "kg": true, "oz": true, "lb": true}
	liquidUnits = map[string]bool{"ml": true, "cl": true, "l": true, "fl oz": true, "cup": true, "pint": true}
	countUnits  = map[string]bool{"item": true, "slice": true, "clove": true, "bulb": true}
)

// CanonicalUnit maps unit spellings such as "Tablespoons" or "litres" to a
// short canonical form. Unknown units are returned lowercased.
func CanonicalUnit(unit string) string {
	u := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(unit), "."))
	key := strings.ReplaceAll(u, " ", "")
	if c, ok := unitAliases[key]; ok {
		return c
	}
	return u
}

// ParseQuantity reads "2", "1.5", "1/2" or "1 1/2".
func ParseQuantity(s string) (float64, bool) {
	s = strings.TrimSpace(fractionRe.Replace(s))
	if s == "" {
		return 0, false
	}
	total := 0.0
	for _, part := range strings.Fields(s) {
		if num, den, ok := strings.Cut(part, "/"); ok {
			n, err1 := strconv.ParseFloat(num, 64)
			d, err2 := strconv.ParseFloat(den, 64)
			if err1 != nil || err2 != nil || d == 0 {
				return 0, false
			}
			total += n / d
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return 0, false
		}
		total += v
	}
	return total, true
}

// Parse splits an ingredient line into quantity, unit and name. Lines with no
// recognisable amount default to one item.
func Parse(line string) Ingredient {
	original := strings.TrimSpace(line)
	text := reSpaces.ReplaceAllString(strings.TrimSpace(fractionRe.Replace(strings.ToLower(original))), " ")
	ing := Ingredient{Quantity: 1, Unit: "item", Name: text, Original: original}

	if m := reQtyUnit.FindStringSubmatch(text); m != nil {
		if q, ok := ParseQuantity(m[1]); ok {
			ing.Quantity, ing.HasQuantity = q, true
			ing.Unit = CanonicalUnit(m[2])
			ing.Name = strings.TrimSpace(m[3])
			return ing
		}
	}
	if m := reQtySize.FindStringSubmatch(text); m != nil {
		if q, ok := ParseQuantity(m[1]); ok {
			ing.Quantity, ing.HasQuantity = q, true
			ing.Size = m[2]
			ing.Name = strings.TrimSpace(m[3])
			return ing
		}
	}
	if m := reQtyName.FindStringSubmatch(text); m != nil {
		if q, ok := ParseQuantity(m[1]); ok {
			ing.Quantity, ing.HasQuantity = q, true
			ing.Name = strings.TrimSpace(m[2])
			return ing
		}
	}
	if m := reMeasure.FindStringSubmatch(text); m != nil {
		ing.Unit = m[1]
		ing.Name = strings.TrimSpace(m[2])
		return ing
	}
	return ing
}

// Scale multiplies the leading quantity of line by factor, leaving the rest of
// the text untouched. Lines without a leading quantity are returned as-is.
func Scale(line string, factor float64) string {
	trimmed := strings.TrimSpace(fractionRe.Replace(line))
	loc := reLeadQty.FindStringSubmatchIndex(trimmed)
	if loc == nil {
		return line
	}
	q, ok := ParseQuantity(trimmed[loc[2]:loc[3]])
	if !ok {
		return line
	}
	return FormatQuantity(q*factor) + trimmed[loc[1]:]
}

// FormatQuantity renders a quantity with at most two decimals and no trailing zeros.
func FormatQuantity(q float64) string {
	q = math.Round(q*100) / 100
	return strconv.FormatFloat(q, 'f', -1, 64)
}

var suggestionStopWords = map[string]bool{
	"chopped": true, "diced": true, "minced": true, "sliced": true,
	"fresh": true, "dried": true, "ground": true, "of": true,
}

// KeyName reduces a line to its first two significant words, for loose
// matching against pantry contents.
func KeyName(line string) string {
	name := reParens.ReplaceAllString(Parse(line).Name, " ")
	name = strings.Split(name, ",")[0]
	var words []string
	for _, w := range strings.Fields(name) {
		if suggestionStopWords[w] {
			continue
		}
		words = append(words, w)
		if len(words) == 2 {
			break
		}
	}
	return strings.Join(words, " ")
}

// ProductName cleans an ingredient name into something you would look for on
// a shelf: "2 large onions (finely chopped)" becomes "Onions".
func ProductName(name string) string {
	if before, _, ok := strings.Cut(name, " or "); ok {
		name = before
	}
	name = reParens.ReplaceAllString(name, "")
	name = rePrep.ReplaceAllString(name, "")
	name = reSize.ReplaceAllString(name, "")
	name = reFillers.ReplaceAllString(name, "")
	name = strings.Trim(reSpaces.ReplaceAllString(name, " "), " ,")
	if name == "" {
		return "Unknown ingredient"
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
