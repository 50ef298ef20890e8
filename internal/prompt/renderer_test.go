package prompt_test

import (
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commuteai/agents/internal/prompt"
)

func TestRenderer_Render(t *testing.T) {
	fsys := fstest.MapFS{
		"greeting.tmpl": {Data: []byte(`Hello {{.name}}, you have {{count .items}} items.`)},
	}
	r := prompt.NewRenderer(fsys)

	out, err := r.Render("greeting.tmpl", map[string]any{
		"name":  "traveller",
		"items": []any{"a", "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello traveller, you have 2 items.", out)
}

func TestRenderer_MissingTemplate(t *testing.T) {
	r := prompt.NewRenderer(fstest.MapFS{})

	_, err := r.Render("nope.tmpl", nil)
	assert.ErrorIs(t, err, prompt.ErrTemplateNotFound)

	err = r.Load("nope.tmpl")
	assert.ErrorIs(t, err, prompt.ErrTemplateNotFound)
}

func TestRenderer_MalformedTemplate(t *testing.T) {
	r := prompt.NewRenderer(fstest.MapFS{
		"bad.tmpl": {Data: []byte(`{{if .x}}unterminated`)},
	})

	err := r.Load("bad.tmpl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse template bad.tmpl")
}

func TestRenderer_CachesParsedTemplates(t *testing.T) {
	fsys := fstest.MapFS{"a.tmpl": {Data: []byte(`first`)}}
	r := prompt.NewRenderer(fsys)

	require.NoError(t, r.Load("a.tmpl"))
	fsys["a.tmpl"] = &fstest.MapFile{Data: []byte(`second`)}

	out, err := r.Render("a.tmpl", nil)
	require.NoError(t, err)
	assert.Equal(t, "first", out)
}

func TestRenderer_ConcurrentRender(t *testing.T) {
	r := prompt.NewRenderer(fstest.MapFS{"n.tmpl": {Data: []byte(`{{.n}}`)}})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := r.Render("n.tmpl", map[string]any{"n": 7})
			assert.NoError(t, err)
			assert.Equal(t, "7", out)
		}()
	}
	wg.Wait()
}

func TestRenderer_IsPure(t *testing.T) {
	r := prompt.NewRenderer(fstest.MapFS{"p.tmpl": {Data: []byte(`{{range $i, $x := .xs}}{{inc $i}}={{$x}} {{end}}`)}})
	vars := map[string]any{"xs": []any{"a", "b"}}

	first, err := r.Render("p.tmpl", vars)
	require.NoError(t, err)
	second, err := r.Render("p.tmpl", vars)
	require.NoError(t, err)

	assert.Equal(t, "1=a 2=b ", first)
	assert.Equal(t, first, second)
}

func TestFuncs(t *testing.T) {
	tests := []struct {
		name     string
		template string
		vars     map[string]any
		expected string
	}{
		{"minutes rounds", `{{minutes .s}}`, map[string]any{"s": 1800.0}, "30"},
		{"minutes half up", `{{minutes .s}}`, map[string]any{"s": 90.0}, "2"},
		{"minutes missing", `{{minutes .s}}`, map[string]any{}, "0"},
		{"clock", `{{clock .t}}`, map[string]any{"t": "2024-01-15T09:05:00+02:00"}, "09:05"},
		{"clock unparsable", `{{clock .t}}`, map[string]any{"t": "soon"}, "soon"},
		{"clock time value", `{{clock .t}}`, map[string]any{"t": time.Date(2024, 1, 15, 17, 45, 0, 0, time.UTC)}, "17:45"},
		{"count nil", `{{count .xs}}`, map[string]any{}, "0"},
		{"count list", `{{count .xs}}`, map[string]any{"xs": []any{1, 2, 3}}, "3"},
		{"meters whole", `{{meters .d}}`, map[string]any{"d": 15000.0}, "15000"},
		{"meters fraction", `{{meters .d}}`, map[string]any{"d": 812.46}, "812.5"},
		{"place named", `{{placeName .p}}`, map[string]any{"p": map[string]any{"name": "Helsinki"}}, "Helsinki"},
		{
			"place unnamed",
			`{{placeName .p}}`,
			map[string]any{"p": map[string]any{"coordinates": map[string]any{"latitude": 60.1699, "longitude": 24.9384}}},
			"60.1699, 24.9384",
		},
		{"place missing", `{{placeName .p}}`, map[string]any{}, "unknown place"},
		{"trim", `[{{trim .s}}]`, map[string]any{"s": "  fast  "}, "[fast]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := prompt.NewRenderer(fstest.MapFS{"t.tmpl": {Data: []byte(tt.template)}})
			out, err := r.Render("t.tmpl", tt.vars)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestFlatten(t *testing.T) {
	type inner struct {
		Name string `json:"name"`
	}
	type model struct {
		Items    []inner `json:"items"`
		Optional *inner  `json:"optional"`
		Seconds  int     `json:"seconds"`
	}

	vars, err := prompt.Flatten(model{Items: []inner{{Name: "a"}}, Seconds: 1800})
	require.NoError(t, err)

	items, ok := vars["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, "a", items[0].(map[string]any)["name"])
	assert.Nil(t, vars["optional"])
	assert.Equal(t, 1800.0, vars["seconds"])
}

func TestFlatten_RejectsNonObjects(t *testing.T) {
	_, err := prompt.Flatten([]int{1, 2})
	assert.Error(t, err)
}
