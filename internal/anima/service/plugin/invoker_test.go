package plugin

import (
	"context"
	"fmt"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/anima/internal/anima/pkg/errno"
	"github.com/kiosk404/anima/internal/anima/service/llm"
)

type scriptedCaller struct {
	reply string
	err   error
}

func (s *scriptedCaller) Chat(_ context.Context, _ []*schema.Message, _ llm.Tier) (string, error) {
	return s.reply, s.err
}

func staticPlugin(id, name, content string, keywords ...string) *FuncPlugin {
	return &FuncPlugin{
		ID: id, Title: name, Desc: name, Words: keywords,
		Fn: func(context.Context) (*Result, error) {
			return &Result{Context: content}, nil
		},
	}
}

func testRegistry() (*Registry, []Plugin) {
	r := NewRegistry()
	r.Register(staticPlugin("weather", "Weather", "sunny, 24C", "weather", "天气"))
	r.Register(staticPlugin("news", "News", "quiet day", "news"))
	r.Register(staticPlugin("music", "Music", "now playing: rain sounds", "music"))
	return r, r.Enabled()
}

func TestParseSelectionByIndexAndID(t *testing.T) {
	_, candidates := testRegistry()

	out := parseSelection("1, news", candidates)
	require.Len(t, out, 2)
	assert.Equal(t, "weather", out[0].ToolID())
	assert.Equal(t, "news", out[1].ToolID())
}

func TestParseSelectionChinesePunctuation(t *testing.T) {
	_, candidates := testRegistry()

	out := parseSelection("weather，music、2", candidates)
	require.Len(t, out, 3)
	assert.Equal(t, "weather", out[0].ToolID())
	assert.Equal(t, "music", out[1].ToolID())
	assert.Equal(t, "news", out[2].ToolID())
}

func TestParseSelectionDeduplicates(t *testing.T) {
	_, candidates := testRegistry()

	out := parseSelection("1, weather, Weather", candidates)
	assert.Len(t, out, 1)
}

func TestParseSelectionNone(t *testing.T) {
	_, candidates := testRegistry()

	out := parseSelection("none", candidates)
	require.NotNil(t, out)
	assert.Empty(t, out)
}

func TestParseSelectionIgnoresJunk(t *testing.T) {
	_, candidates := testRegistry()

	out := parseSelection("0, 99, unknown-tool, 3", candidates)
	require.Len(t, out, 1)
	assert.Equal(t, "music", out[0].ToolID())
}

func TestContextForCollectsSections(t *testing.T) {
	registry, _ := testRegistry()
	inv := NewInvoker(registry, &scriptedCaller{reply: "weather, music"})

	got := inv.ContextFor(context.Background(), "what's the weather like, put some music on")
	assert.Contains(t, got, "[Weather] sunny, 24C")
	assert.Contains(t, got, "[Music] now playing: rain sounds")
	assert.NotContains(t, got, "[News]")
}

func TestContextForModelNoneSkipsKeywords(t *testing.T) {
	registry, _ := testRegistry()
	inv := NewInvoker(registry, &scriptedCaller{reply: "none"})

	// The model's explicit "none" wins even though keywords would match.
	got := inv.ContextFor(context.Background(), "any news about the weather?")
	assert.Empty(t, got)
}

func TestContextForFallsBackToKeywords(t *testing.T) {
	registry, _ := testRegistry()
	inv := NewInvoker(registry, &scriptedCaller{err: fmt.Errorf("%w: down", errno.ErrUpstream)})

	got := inv.ContextFor(context.Background(), "今天天气怎么样")
	assert.Contains(t, got, "[Weather]")
}

func TestContextForSkipsFailingPlugin(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&FuncPlugin{
		ID: "broken", Title: "Broken",
		Fn: func(context.Context) (*Result, error) { return nil, fmt.Errorf("boom") },
	})
	registry.Register(staticPlugin("news", "News", "quiet day"))
	inv := NewInvoker(registry, &scriptedCaller{reply: "1, 2"})

	got := inv.ContextFor(context.Background(), "anything going on?")
	assert.Equal(t, "[News] quiet day", got)
}

func TestContextForDisabledPluginsExcluded(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&FuncPlugin{ID: "off", Title: "Off", Disabled: true,
		Fn: func(context.Context) (*Result, error) { return &Result{Context: "x"}, nil }})
	inv := NewInvoker(registry, &scriptedCaller{reply: "1"})

	assert.Empty(t, inv.ContextFor(context.Background(), "hello"))
}
