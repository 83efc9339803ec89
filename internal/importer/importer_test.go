package importer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/homegrubhub/homegrubhub-be/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonLDPage = `<html><head>
<script type="application/ld+json">{"@context":"https://schema.org","@graph":[
 {"@type":"WebPage","name":"ignored"},
 {"@type":["Recipe"],"name":"Shakshuka","description":"Eggs  in spicy\n tomato sauce",
  "recipeIngredient":["2 tbsp olive oil","1 onion","400g tinned tomatoes","4 eggs"],
  "recipeInstructions":[{"@type":"HowToSection","itemListElement":[{"@type":"HowToStep","text":"Fry the onion."}]},{"@type":"HowToStep","text":"Add tomatoes."},"Crack in the eggs."],
  "prepTime":"PT10M","cookTime":"PT1H5M","recipeYield":["2","2 servings"],"image":{"url":"https://img.example/s.jpg"}}
]}</script></head><body><h1>Other title</h1></body></html>`

const markupPage = `<html><head><meta name="description" content="Simple soup"></head><body>
<h1> Leek   Soup </h1>
<div class="recipe-ingredients"><ul><li>2 leeks</li><li> 1 potato </li><li></li></ul></div>
<ol id="method-steps"><li>Chop.</li><li>Simmer.</li></ol>
</body></html>`

func TestParseJSONLD(t *testing.T) {
	draft, err := Parse(strings.NewReader(jsonLDPage))
	require.NoError(t, err)

	assert.Equal(t, "Shakshuka", draft.Title)
	assert.Equal(t, "Eggs in spicy tomato sauce", draft.Description)
	assert.Len(t, draft.Ingredients, 4)
	assert.Equal(t, []string{"Fry the onion.", "Add tomatoes.", "Crack in the eggs."}, draft.Method)
	require.NotNil(t, draft.PrepTime)
	assert.Equal(t, 10, *draft.PrepTime)
	require.NotNil(t, draft.CookTime)
	assert.Equal(t, 65, *draft.CookTime)
	assert.Equal(t, 2, draft.Servings)
	assert.Equal(t, "https://img.example/s.jpg", draft.ImageURL)
}

func TestParseMarkupFallback(t *testing.T) {
	draft, err := Parse(strings.NewReader(markupPage))
	require.NoError(t, err)

	assert.Equal(t, "Leek Soup", draft.Title)
	assert.Equal(t, "Simple soup", draft.Description)
	assert.Equal(t, []string{"2 leeks", "1 potato"}, draft.Ingredients)
	assert.Equal(t, []string{"Chop.", "Simmer."}, draft.Method)
	assert.Equal(t, 4, draft.Servings)
}

func TestParseNoRecipe(t *testing.T) {
	_, err := Parse(strings.NewReader("<html><body><p>nothing</p></body></html>"))
	assert.True(t, apperr.Is(err, apperr.CodeValidationFailed))
}

func TestParseDuration(t *testing.T) {
	cases := map[string]int{"PT15M": 15, "PT1H": 60, "P1DT2H": 1560, "pt0h20m40s": 21}
	for in, want := range cases {
		got := ParseDuration(in)
		require.NotNil(t, got, in)
		assert.Equal(t, want, *got, in)
	}
	assert.Nil(t, ParseDuration(""))
	assert.Nil(t, ParseDuration("20 minutes"))
	assert.Nil(t, ParseDuration("PT0M"))
}

func TestImport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(jsonLDPage))
	}))
	defer srv.Close()

	im := New()
	draft, err := im.Import(context.Background(), srv.URL+"/shakshuka")
	require.NoError(t, err)
	assert.Equal(t, "Shakshuka", draft.Title)
	assert.Equal(t, srv.URL+"/shakshuka", draft.SourceURL)

	_, err = im.Import(context.Background(), srv.URL+"/missing")
	assert.True(t, apperr.Is(err, apperr.CodeExternalService))

	_, err = im.Import(context.Background(), "ftp://example.com/recipe")
	assert.True(t, apperr.Is(err, apperr.CodeValidationFailed))
}
