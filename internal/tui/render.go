package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	"github.com/xcrape/xcrape/internal/section"
)

const minRenderWidth = 20

// RenderView lays out a rendered section as terminal text no wider than width
func RenderView(v section.View, width int) string {
	if width < minRenderWidth {
		width = minRenderWidth
	}

	var parts []string
	if v.Summary != "" {
		parts = append(parts, summaryStyle.Render(v.Summary))
	}
	for _, b := range v.Blocks {
		parts = append(parts, renderBlock(b, width))
	}
	return strings.Join(parts, "\n\n")
}

// RenderTabs renders the tab bar with active highlighted
func RenderTabs(tabs []section.TabID, active section.TabID) string {
	out := make([]string, 0, len(tabs))
	for _, t := range tabs {
		if t == active {
			out = append(out, activeTabStyle.Render(t.Label()))
		} else {
			out = append(out, tabStyle.Render(t.Label()))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, out...)
}

func renderBlock(b section.Block, width int) string {
	var lines []string
	if b.Title != "" {
		lines = append(lines, blockTitleStyle.Render(b.Title))
	}

	switch b.Kind {
	case section.BlockPlaceholder:
		lines = append(lines, placeholderStyle.Render("∅ "+b.Text))
	case section.BlockKeyValues:
		lines = append(lines, renderPairs(b.Pairs, width))
	case section.BlockItems:
		lines = append(lines, renderItems(b.Items, width))
	case section.BlockTable:
		lines = append(lines, renderTable(b.Table, width))
	case section.BlockCode:
		if b.Code != nil {
			lines = append(lines, wrapHard(b.Code.Content, width))
		}
	case section.BlockCards:
		lines = append(lines, renderCards(b.Cards, width))
	}
	return strings.Join(lines, "\n")
}

func renderPairs(pairs []section.KeyValue, width int) string {
	keyWidth := 0
	for _, kv := range pairs {
		if w := lipgloss.Width(kv.Key); w > keyWidth {
			keyWidth = w
		}
	}
	valueWidth := width - keyWidth - 2
	if valueWidth < 10 {
		valueWidth = 10
	}

	out := make([]string, 0, len(pairs))
	for _, kv := range pairs {
		value := wrapHard(kv.Value, valueWidth)
		if kv.Missing {
			value = mutedStyle.Render(value)
		}
		value = hangingIndent(value, uint(keyWidth+2))
		out = append(out, keyStyle.Render(padRight(kv.Key, keyWidth))+"  "+value)
	}
	return strings.Join(out, "\n")
}

func renderItems(items []section.Item, width int) string {
	badgeWidth := 0
	for _, it := range items {
		if w := lipgloss.Width(it.Badge); w > badgeWidth {
			badgeWidth = w
		}
	}
	gap := 0
	if badgeWidth > 0 {
		gap = badgeWidth + 1
	}
	textWidth := width - gap
	if textWidth < 10 {
		textWidth = 10
	}

	out := make([]string, 0, len(items))
	for _, it := range items {
		line := ""
		if badgeWidth > 0 {
			line = badgeStyle.Render(padRight(it.Badge, badgeWidth)) + " "
		}
		line += hangingIndent(wrapHard(it.Text, textWidth), uint(gap))
		if it.Detail != "" && it.Detail != it.Text {
			line += "\n" + indent.String(mutedStyle.Render(truncate.StringWithTail(it.Detail, uint(textWidth), "…")), uint(gap))
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func renderTable(t *section.Table, width int) string {
	if t == nil {
		return ""
	}
	cols := len(t.Header)
	for _, r := range t.Rows {
		if len(r) > cols {
			cols = len(r)
		}
	}
	if cols == 0 {
		return placeholderStyle.Render("∅ empty table")
	}

	widths := make([]int, cols)
	measure := func(row []string) {
		for i, c := range row {
			if w := lipgloss.Width(c); w > widths[i] {
				widths[i] = w
			}
		}
	}
	measure(t.Header)
	for _, r := range t.Rows {
		measure(r)
	}

	// shrink columns evenly until the table fits, keeping at least 3 cells wide
	budget := width - (cols-1)*3
	for total(widths) > budget {
		widest := 0
		for i := range widths {
			if widths[i] > widths[widest] {
				widest = i
			}
		}
		if widths[widest] <= 3 {
			break
		}
		widths[widest]--
	}

	render := func(row []string, style *lipgloss.Style) string {
		cells := make([]string, cols)
		for i := 0; i < cols; i++ {
			c := ""
			if i < len(row) {
				c = row[i]
			}
			c = padRight(truncate.StringWithTail(strings.ReplaceAll(c, "\n", " "), uint(widths[i]), "…"), widths[i])
			if style != nil {
				c = style.Render(c)
			}
			cells[i] = c
		}
		return strings.Join(cells, " │ ")
	}

	out := make([]string, 0, len(t.Rows)+2)
	if t.Header != nil {
		out = append(out, render(t.Header, &headerCellStyle))
		seps := make([]string, cols)
		for i, w := range widths {
			seps[i] = strings.Repeat("─", w)
		}
		out = append(out, mutedStyle.Render(strings.Join(seps, "─┼─")))
	}
	for _, r := range t.Rows {
		out = append(out, render(r, nil))
	}
	return strings.Join(out, "\n")
}

func renderCards(cards []section.Card, width int) string {
	out := make([]string, 0, len(cards))
	for _, c := range cards {
		head := badgeStyle.Render(fmt.Sprintf("[%d]", c.Index+1)) + " " + truncate.StringWithTail(c.Title, uint(width-6), "…")
		lines := []string{head}
		for _, l := range c.Lines {
			lines = append(lines, "    "+l)
		}
		if c.PreviewHidden {
			lines = append(lines, "    "+mutedStyle.Render("(preview unavailable)"))
		}
		out = append(out, strings.Join(lines, "\n"))
	}
	return strings.Join(out, "\n")
}

// wrapHard word-wraps s and then breaks words that are still too long
func wrapHard(s string, width int) string {
	wrapped := wordwrap.String(s, width)
	var out []string
	for _, line := range strings.Split(wrapped, "\n") {
		for lipgloss.Width(line) > width {
			cut := truncate.String(line, uint(width))
			if cut == "" {
				break
			}
			out = append(out, cut)
			line = line[len(cut):]
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// hangingIndent indents every line but the first
func hangingIndent(s string, n uint) string {
	first, rest, found := strings.Cut(s, "\n")
	if !found {
		return s
	}
	return first + "\n" + indent.String(rest, n)
}

func padRight(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

func total(ws []int) int {
	n := 0
	for _, w := range ws {
		n += w
	}
	return n
}
