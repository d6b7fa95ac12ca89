package section

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/xcrape/xcrape/internal/payload"
)

// ErrUnknownTab is returned for tabs a payload does not offer
var ErrUnknownTab = errors.New("unknown tab")

const missingValue = "—"

// Render describes one tab of a successful result. It never touches the network.
func Render(tab TabID, p *payload.SuccessResult) (View, error) {
	if p == nil {
		return View{}, errors.New("nil result")
	}

	var v View
	switch tab {
	case TabOverview:
		v = renderOverview(p)
	case TabMeta:
		v = renderMeta(p)
	case TabHeadings:
		v = renderHeadings(p.Headings)
	case TabLinks:
		v = renderLinks(p)
	case TabImages:
		v = renderImages(p.Images)
	case TabText:
		v = renderText(p.Text)
	case TabTables:
		v = renderTables(p.Tables)
	case TabLists:
		v = renderLists(p.Lists)
	case TabTechnologies:
		v = renderTechnologies(p.Technologies)
	case TabSocial:
		v = renderSocial(p.SocialLinks)
	case TabStructured:
		v = renderStructured(p.StructuredData)
	case TabStats:
		v = renderStats(p.Stats)
	case TabRaw:
		v = renderRaw(p)
	default:
		return View{}, fmt.Errorf("%w: %s", ErrUnknownTab, tab)
	}

	v.Tab = tab
	v.Title = tab.Label()
	v.Actions = append([]Action{copyAction()}, v.Actions...)
	return v, nil
}

// RenderError describes the error view of a failed scrape
func RenderError(e *payload.ErrorResult) View {
	errType := e.ErrorType
	if errType == "" {
		errType = "Error"
	}
	msg := e.Error
	if msg == "" {
		msg = "Unknown error"
	}

	v := View{
		Tab:   TabError,
		Title: TabError.Label(),
		Blocks: []Block{{
			Kind: BlockKeyValues,
			Pairs: []KeyValue{
				{Key: "Type", Value: errType},
				{Key: "Message", Value: msg},
			},
		}},
		Actions: []Action{copyAction()},
		Data:    e,
	}
	if e.LoadTimeSeconds != nil && *e.LoadTimeSeconds > 0 {
		v.Summary = fmt.Sprintf("Failed after %ss", formatSeconds(*e.LoadTimeSeconds))
	}
	return v
}

// RenderPayload renders tab for either result kind
func RenderPayload(tab TabID, p payload.Payload) (View, error) {
	switch v := p.(type) {
	case *payload.SuccessResult:
		return Render(tab, v)
	case *payload.ErrorResult:
		if tab != TabError {
			return View{}, fmt.Errorf("%w: %s", ErrUnknownTab, tab)
		}
		return RenderError(v), nil
	default:
		return View{}, fmt.Errorf("%w: %s has no sections", ErrUnknownTab, p.Kind())
	}
}

// Copy serializes the data behind one tab as indented JSON
func Copy(tab TabID, p payload.Payload) ([]byte, error) {
	v, err := RenderPayload(tab, p)
	if err != nil {
		return nil, err
	}
	out, err := json.MarshalIndent(v.Data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("error encoding section %s: %w", tab, err)
	}
	return out, nil
}

func empty(msg string, data interface{}) View {
	return View{
		Empty:       true,
		Placeholder: msg,
		Blocks:      []Block{placeholder(msg)},
		Data:        data,
	}
}

type overviewData struct {
	Title      string       `json:"title"`
	FinalURL   string       `json:"final_url"`
	Screenshot *captureInfo `json:"screenshot,omitempty"`
}

// captureInfo describes a page capture without carrying its bytes
type captureInfo struct {
	MIME      string `json:"mime"`
	SizeBytes int    `json:"size_bytes"`
}

func renderOverview(p *payload.SuccessResult) View {
	internal, external := p.LinkSplit()
	v := View{
		Blocks: []Block{{
			Kind: BlockKeyValues,
			Pairs: []KeyValue{
				value("Title", p.Meta.Title),
				value("Final URL", p.Meta.FinalURL),
				{Key: "Links", Value: fmt.Sprintf("%d (%d internal, %d external)", len(p.Links), internal, external)},
				{Key: "Images", Value: strconv.Itoa(len(p.Images))},
				{Key: "Tables", Value: strconv.Itoa(len(p.Tables))},
				loadTime(p.Stats.LoadTimeSeconds),
			},
		}},
	}
	data := overviewData{Title: p.Meta.Title, FinalURL: p.Meta.FinalURL}

	src, ok := p.ScreenshotDataURL()
	if !ok {
		v.Blocks = append(v.Blocks, placeholder("No screenshot captured"))
		v.Data = data
		return v
	}

	card := Card{Title: "Screenshot", Preview: src}
	if c, err := p.DecodeScreenshot(); err == nil {
		card.Lines = []string{c.MIME, FormatBytes(c.Size())}
		data.Screenshot = &captureInfo{MIME: c.MIME, SizeBytes: c.Size()}
	} else {
		card.PreviewHidden = true
		card.Lines = []string{"unreadable capture"}
	}
	v.Blocks = append(v.Blocks, Block{Kind: BlockCards, Cards: []Card{card}})
	v.Actions = []Action{{Kind: ActionSaveScreenshot, Label: "Save screenshot"}}
	v.Data = data
	return v
}

type metaData struct {
	Meta            payload.Meta             `json:"meta"`
	SelectorResults []payload.SelectorResult `json:"selector_results,omitempty"`
}

func renderMeta(p *payload.SuccessResult) View {
	m := p.Meta
	v := View{
		Blocks: []Block{{
			Kind: BlockKeyValues,
			Pairs: []KeyValue{
				value("Title", m.Title),
				value("Description", m.Description),
				value("Keywords", m.Keywords),
				value("OG Title", m.OGTitle),
				value("OG Description", m.OGDescription),
				value("OG Image", m.OGImage),
				value("Canonical URL", m.Canonical),
				value("Favicon", m.Favicon),
				value("Final URL", m.FinalURL),
			},
		}},
		Data: metaData{Meta: m, SelectorResults: p.SelectorResults},
	}

	if len(p.SelectorResults) > 0 {
		items := make([]Item, 0, len(p.SelectorResults))
		for _, r := range p.SelectorResults {
			items = append(items, Item{Badge: "<" + r.Tag + ">", Text: r.Text})
		}
		v.Blocks = append(v.Blocks, Block{
			Kind:  BlockItems,
			Title: fmt.Sprintf("CSS Selector Results: %d matches", len(p.SelectorResults)),
			Items: items,
		})
	}
	return v
}

func renderHeadings(headings []payload.Heading) View {
	if len(headings) == 0 {
		return empty("No headings found", headings)
	}
	items := make([]Item, 0, len(headings))
	for _, h := range headings {
		items = append(items, Item{Badge: fmt.Sprintf("H%d", h.Level), Text: h.Text})
	}
	return View{
		Summary: fmt.Sprintf("Found %d headings", len(headings)),
		Blocks:  []Block{{Kind: BlockItems, Items: items}},
		Data:    headings,
	}
}

func renderLinks(p *payload.SuccessResult) View {
	if len(p.Links) == 0 {
		return empty("No links found", p.Links)
	}
	internal, external := p.LinkSplit()
	items := make([]Item, 0, len(p.Links))
	for _, l := range p.Links {
		badge := "EXT"
		if l.Internal {
			badge = "INT"
		}
		text := l.Text
		if text == "" {
			text = l.URL
		}
		items = append(items, Item{Badge: badge, Text: text, Detail: l.URL})
	}
	return View{
		Summary: fmt.Sprintf("Found %d links (%d internal, %d external)", len(p.Links), internal, external),
		Blocks:  []Block{{Kind: BlockItems, Items: items}},
		Data:    p.Links,
	}
}

func renderImages(images []payload.Image) View {
	if len(images) == 0 {
		return empty("No images found", images)
	}
	cards := make([]Card, 0, len(images))
	for i, img := range images {
		card := Card{
			Index:         i,
			Title:         img.Src,
			Preview:       img.Src,
			PreviewHidden: !Loadable(img.Src),
			Actions:       []Action{{Kind: ActionDownloadImage, Label: "Download", Index: i}},
		}
		if img.Alt != "" {
			card.Lines = append(card.Lines, strconv.Quote(img.Alt))
		}
		if dims := dimensions(img); dims != "" {
			card.Lines = append(card.Lines, dims)
		}
		cards = append(cards, card)
	}
	return View{
		Summary: fmt.Sprintf("Found %d images", len(images)),
		Blocks:  []Block{{Kind: BlockCards, Cards: cards}},
		Actions: []Action{{Kind: ActionDownloadAllImages, Label: "Download all"}},
		Data:    images,
	}
}

func dimensions(img payload.Image) string {
	if img.Width == nil && img.Height == nil {
		return ""
	}
	w, h := "?", "?"
	if img.Width != nil && *img.Width != "" {
		w = string(*img.Width)
	}
	if img.Height != nil && *img.Height != "" {
		h = string(*img.Height)
	}
	if w == "?" && h == "?" {
		return ""
	}
	return w + " × " + h
}

// Loadable reports whether an image source can be fetched for a preview:
// absolute http(s) URLs and data:image URLs
func Loadable(src string) bool {
	if strings.HasPrefix(src, "data:image/") {
		return true
	}
	u, err := url.Parse(src)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func renderText(paragraphs []string) View {
	if len(paragraphs) == 0 {
		return empty("No text content extracted", paragraphs)
	}
	items := make([]Item, 0, len(paragraphs))
	for _, p := range paragraphs {
		items = append(items, Item{Text: p})
	}
	return View{
		Summary: fmt.Sprintf("Extracted %d paragraphs", len(paragraphs)),
		Blocks:  []Block{{Kind: BlockItems, Items: items}},
		Data:    paragraphs,
	}
}

func renderTables(tables [][][]string) View {
	if len(tables) == 0 {
		return empty("No tables found", tables)
	}
	blocks := make([]Block, 0, len(tables))
	for i, rows := range tables {
		t := &Table{
			Index:   i,
			Caption: fmt.Sprintf("TABLE %d (%d rows)", i+1, len(rows)),
			Rows:    [][]string{},
		}
		if len(rows) > 0 {
			t.Header = rows[0]
			t.Rows = rows[1:]
		}
		blocks = append(blocks, Block{Kind: BlockTable, Title: t.Caption, Table: t})
	}
	return View{
		Summary: fmt.Sprintf("Found %d tables", len(tables)),
		Blocks:  blocks,
		Data:    tables,
	}
}

func renderLists(lists []payload.List) View {
	if len(lists) == 0 {
		return empty("No lists found", lists)
	}
	blocks := make([]Block, 0, len(lists))
	for i, l := range lists {
		items := make([]Item, 0, len(l.Items))
		for j, it := range l.Items {
			badge := "•"
			if l.Type == "ol" {
				badge = strconv.Itoa(j+1) + "."
			}
			items = append(items, Item{Badge: badge, Text: it})
		}
		blocks = append(blocks, Block{
			Kind:  BlockItems,
			Title: fmt.Sprintf("LIST %d <%s> (%d items)", i+1, l.Type, len(l.Items)),
			Items: items,
		})
	}
	return View{
		Summary: fmt.Sprintf("Found %d lists", len(lists)),
		Blocks:  blocks,
		Data:    lists,
	}
}

func renderTechnologies(techs []payload.Technology) View {
	if len(techs) == 0 {
		return empty("No technologies detected", techs)
	}
	items := make([]Item, 0, len(techs))
	for _, t := range techs {
		items = append(items, Item{Badge: t.Source, Text: t.Name})
	}
	return View{
		Summary: fmt.Sprintf("Detected %d technologies", len(techs)),
		Blocks:  []Block{{Kind: BlockItems, Items: items}},
		Data:    techs,
	}
}

func renderSocial(links []payload.SocialLink) View {
	if len(links) == 0 {
		return empty("No social links found", links)
	}
	items := make([]Item, 0, len(links))
	for _, l := range links {
		text := l.Text
		if text == "" {
			text = l.URL
		}
		items = append(items, Item{Badge: l.Platform, Text: text, Detail: l.URL})
	}
	return View{
		Summary: fmt.Sprintf("Found %d social links", len(links)),
		Blocks:  []Block{{Kind: BlockItems, Items: items}},
		Data:    links,
	}
}

func renderStructured(entries []payload.StructuredData) View {
	if len(entries) == 0 {
		return empty("No structured data found", entries)
	}
	blocks := make([]Block, 0, len(entries))
	for _, e := range entries {
		blocks = append(blocks, Block{
			Kind:  BlockCode,
			Title: e.Format,
			Code:  &Code{Language: "json", Content: indent(e.Data)},
		})
	}
	return View{
		Summary: fmt.Sprintf("Found %d structured data blocks", len(entries)),
		Blocks:  blocks,
		Data:    entries,
	}
}

func renderStats(s payload.Stats) View {
	return View{
		Blocks: []Block{{
			Kind: BlockKeyValues,
			Pairs: []KeyValue{
				count("Words", s.WordCount),
				count("Links", s.LinkCount),
				count("Internal Links", s.InternalLinks),
				count("External Links", s.ExternalLinks),
				count("Images", s.ImageCount),
				count("Headings", s.HeadingCount),
				count("Tables", s.TableCount),
				count("Lists", s.ListCount),
				count("Scripts", s.ScriptCount),
				count("Inline Scripts", s.InlineScriptCount),
				count("Stylesheets", s.StyleCount),
				size("HTML Size", s.HTMLSizeBytes),
				count("Technologies", s.TechCount),
				count("Social Links", s.SocialCount),
				count("Structured Data", s.StructuredDataCount),
				loadTime(s.LoadTimeSeconds),
			},
		}},
		Data: s,
	}
}

func renderRaw(p *payload.SuccessResult) View {
	doc := make(map[string]json.RawMessage, len(p.Raw))
	for k, v := range p.Raw {
		if k == "screenshot" {
			continue
		}
		doc[k] = v
	}
	content, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		content = []byte(err.Error())
	}
	return View{
		Blocks: []Block{{Kind: BlockCode, Code: &Code{Language: "json", Content: string(content)}}},
		Data:   doc,
	}
}

func value(key, v string) KeyValue {
	if v == "" {
		return KeyValue{Key: key, Value: missingValue, Missing: true}
	}
	return KeyValue{Key: key, Value: v}
}

func count(key string, n *int) KeyValue {
	if n == nil {
		return KeyValue{Key: key, Value: missingValue, Missing: true}
	}
	return KeyValue{Key: key, Value: strconv.Itoa(*n)}
}

func size(key string, n *int) KeyValue {
	if n == nil {
		return KeyValue{Key: key, Value: missingValue, Missing: true}
	}
	return KeyValue{Key: key, Value: FormatBytes(*n)}
}

func loadTime(secs *float64) KeyValue {
	if secs == nil || *secs == 0 {
		return KeyValue{Key: "Load Time", Value: missingValue, Missing: true}
	}
	return KeyValue{Key: "Load Time", Value: formatSeconds(*secs) + "s"}
}

func formatSeconds(secs float64) string {
	return strconv.FormatFloat(secs, 'f', -1, 64)
}

// FormatBytes renders a byte count with a binary unit
func FormatBytes(n int) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := int64(n) / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func indent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
