package tui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"

	"github.com/xcrape/xcrape/internal/section"
)

func TestRenderViewKeepsWidth(t *testing.T) {
	v := section.View{
		Summary: "Found 2 links (1 internal, 1 external)",
		Blocks: []section.Block{
			{Kind: section.BlockKeyValues, Pairs: []section.KeyValue{
				{Key: "Title", Value: strings.Repeat("long title ", 20)},
				{Key: "Description", Value: "—", Missing: true},
			}},
			{Kind: section.BlockItems, Items: []section.Item{
				{Badge: "INT", Text: "/about", Detail: "About us"},
				{Badge: "EXT", Text: "https://" + strings.Repeat("x", 120) + ".example"},
			}},
		},
	}

	out := RenderView(v, 40)

	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, lipgloss.Width(line), 40, "line %q", line)
	}
	assert.Contains(t, out, "About us")
	assert.Contains(t, out, "Found 2 links")
}

func TestRenderTableShrinksColumns(t *testing.T) {
	tbl := &section.Table{
		Index:   0,
		Caption: "TABLE 1 (2 rows)",
		Header:  []string{"Name", "Description"},
		Rows: [][]string{
			{"alpha", strings.Repeat("a", 80)},
			{"beta", "short"},
		},
	}

	out := renderTable(tbl, 30)
	lines := strings.Split(out, "\n")

	assert.Len(t, lines, 4)
	for _, line := range lines {
		assert.LessOrEqual(t, lipgloss.Width(line), 30, "line %q", line)
	}
	assert.Contains(t, lines[0], "Name")
	assert.Contains(t, lines[3], "beta")
}

func TestRenderTableRaggedRows(t *testing.T) {
	out := renderTable(&section.Table{Rows: [][]string{{"a"}, {"b", "c", "d"}}}, 40)

	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 2)
	assert.Equal(t, 2, strings.Count(lines[0], "│"))
}

func TestRenderCardsMarksHiddenPreview(t *testing.T) {
	out := renderCards([]section.Card{
		{Index: 0, Title: "https://example.com/a.png"},
		{Index: 1, Title: "broken", PreviewHidden: true},
	}, 60)

	assert.Contains(t, out, "[1]")
	assert.Contains(t, out, "[2]")
	assert.Equal(t, 1, strings.Count(out, "(preview unavailable)"))
}

func TestWrapHardBreaksLongWords(t *testing.T) {
	out := wrapHard(strings.Repeat("y", 25), 10)

	assert.Equal(t, []string{"yyyyyyyyyy", "yyyyyyyyyy", "yyyyy"}, strings.Split(out, "\n"))
}

func TestRenderTabsHighlightsActive(t *testing.T) {
	out := RenderTabs([]section.TabID{section.TabMeta, section.TabTechnologies}, section.TabTechnologies)

	assert.Contains(t, out, "Meta")
	assert.Contains(t, out, "Tech")
}
