// Package importer extracts recipe drafts from external recipe web pages.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/homegrubhub/homegrubhub-be/internal/apperr"
	"github.com/homegrubhub/homegrubhub-be/internal/models"
)

const maxPageBytes = 2 << 20

// Importer fetches recipe pages over HTTP.
type Importer struct {
	client *http.Client
}

// New creates an Importer with a 10 second fetch timeout.
func New() *Importer {
	return &Importer{client: &http.Client{Timeout: 10 * time.Second}}
}

// Import downloads rawURL and extracts a recipe draft from it.
func (im *Importer) Import(ctx context.Context, rawURL string) (models.RecipeDraft, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return models.RecipeDraft{}, apperr.Validation("URL must be an absolute http(s) address")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return models.RecipeDraft{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "HomeGrubHub-RecipeImporter/1.0")

	resp, err := im.client.Do(req)
	if err != nil {
		return models.RecipeDraft{}, apperr.External("recipe site", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.RecipeDraft{}, apperr.External("recipe site", fmt.Errorf("failed to fetch URL: status %d", resp.StatusCode))
	}

	draft, err := Parse(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return models.RecipeDraft{}, err
	}
	draft.SourceURL = u.String()
	return draft, nil
}

// Parse extracts a recipe from an HTML document, preferring schema.org JSON-LD
// and falling back to the page's headings and list items.
func Parse(r io.Reader) (models.RecipeDraft, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return models.RecipeDraft{}, fmt.Errorf("failed to parse page: %w", err)
	}

	var draft models.RecipeDraft
	found := false
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var raw interface{}
		if json.Unmarshal([]byte(s.Text()), &raw) != nil {
			return true
		}
		if obj := findRecipe(raw); obj != nil {
			draft = fromJSONLD(obj)
			found = true
			return false
		}
		return true
	})

	if !found {
		draft = fromMarkup(doc)
	}

	if draft.Title == "" || len(draft.Ingredients) == 0 {
		return models.RecipeDraft{}, apperr.Validation("No recipe found on the page")
	}
	if draft.Servings <= 0 {
		draft.Servings = 4
	}
	return draft, nil
}

func findRecipe(v interface{}) map[string]interface{} {
	switch t := v.(type) {
	case []interface{}:
		for _, item := range t {
			if r := findRecipe(item); r != nil {
				return r
			}
		}
	case map[string]interface{}:
		if isRecipeType(t["@type"]) {
			return t
		}
		if graph, ok := t["@graph"]; ok {
			return findRecipe(graph)
		}
	}
	return nil
}

func isRecipeType(v interface{}) bool {
	switch t := v.(type) {
	case string:
		return t == "Recipe"
	case []interface{}:
		for _, x := range t {
			if s, ok := x.(string); ok && s == "Recipe" {
				return true
			}
		}
	}
	return false
}

func fromJSONLD(obj map[string]interface{}) models.RecipeDraft {
	draft := models.RecipeDraft{
		Title:       cleanText(str(obj["name"])),
		Description: cleanText(str(obj["description"])),
		Ingredients: strList(obj["recipeIngredient"]),
		Method:      instructions(obj["recipeInstructions"]),
		PrepTime:    ParseDuration(str(obj["prepTime"])),
		CookTime:    ParseDuration(str(obj["cookTime"])),
		Servings:    servings(obj["recipeYield"]),
		ImageURL:    image(obj["image"]),
	}
	if len(draft.Ingredients) == 0 {
		draft.Ingredients = strList(obj["ingredients"])
	}
	return draft
}

func fromMarkup(doc *goquery.Document) models.RecipeDraft {
	draft := models.RecipeDraft{
		Title:       cleanText(doc.Find("h1").First().Text()),
		Description: strings.TrimSpace(doc.Find(`meta[name="description"]`).AttrOr("content", "")),
		ImageURL:    doc.Find(`meta[property="og:image"]`).AttrOr("content", ""),
	}
	doc.Find(`[class*="ingredient"] li, [id*="ingredient"] li`).Each(func(_ int, s *goquery.Selection) {
		if t := cleanText(s.Text()); t != "" {
			draft.Ingredients = append(draft.Ingredients, t)
		}
	})
	doc.Find(`[class*="instruction"] li, [class*="method"] li, [id*="method"] li`).Each(func(_ int, s *goquery.Selection) {
		if t := cleanText(s.Text()); t != "" {
			draft.Method = append(draft.Method, t)
		}
	})
	return draft
}

var spaceRe = regexp.MustCompile(`\s+`)

func cleanText(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

func str(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

func strList(v interface{}) []string {
	var out []string
	switch t := v.(type) {
	case string:
		for _, line := range strings.Split(t, "\n") {
			if line = cleanText(line); line != "" {
				out = append(out, line)
			}
		}
	case []interface{}:
		for _, x := range t {
			if s := cleanText(str(x)); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func instructions(v interface{}) []string {
	switch t := v.(type) {
	case string:
		return strList(t)
	case []interface{}:
		var out []string
		for _, step := range t {
			switch s := step.(type) {
			case string:
				if c := cleanText(s); c != "" {
					out = append(out, c)
				}
			case map[string]interface{}:
				if list, ok := s["itemListElement"]; ok {
					out = append(out, instructions(list)...)
				} else if text := cleanText(str(s["text"])); text != "" {
					out = append(out, text)
				}
			}
		}
		return out
	}
	return nil
}

var leadingInt = regexp.MustCompile(`\d+`)

func servings(v interface{}) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		if m := leadingInt.FindString(t); m != "" {
			n, _ := strconv.Atoi(m)
			return n
		}
	case []interface{}:
		for _, x := range t {
			if n := servings(x); n > 0 {
				return n
			}
		}
	}
	return 0
}

func image(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []interface{}:
		if len(t) > 0 {
			return image(t[0])
		}
	case map[string]interface{}:
		return str(t["url"])
	}
	return ""
}

var durationRe = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseDuration converts an ISO-8601 duration such as "PT1H30M" to minutes.
// Unparseable or empty values yield nil.
func ParseDuration(s string) *int {
	m := durationRe.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil || s == "" {
		return nil
	}
	n := func(i int) int {
		v, _ := strconv.Atoi(m[i])
		return v
	}
	minutes := n(1)*24*60 + n(2)*60 + n(3)
	if n(4) >= 30 {
		minutes++
	}
	if minutes == 0 {
		return nil
	}
	return &minutes
}
