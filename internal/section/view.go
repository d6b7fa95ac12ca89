package section

// BlockKind discriminates the content blocks of a View
type BlockKind int

const (
	// BlockPlaceholder is the uniform "nothing found" message
	BlockPlaceholder BlockKind = iota
	// BlockKeyValues is a list of labelled values
	BlockKeyValues
	// BlockItems is a list of entries with an optional badge
	BlockItems
	// BlockTable is a table whose first row is the header
	BlockTable
	// BlockCode is preformatted text
	BlockCode
	// BlockCards is a grid of cards, one per image
	BlockCards
)

// ActionKind names an affordance offered by a view
type ActionKind string

const (
	// ActionCopy copies the section data
	ActionCopy ActionKind = "copy"
	// ActionDownloadImage downloads one image by index
	ActionDownloadImage ActionKind = "download"
	// ActionDownloadAllImages downloads every image as an archive
	ActionDownloadAllImages ActionKind = "download-all"
	// ActionSaveScreenshot saves the page capture
	ActionSaveScreenshot ActionKind = "save-screenshot"
)

// View describes one rendered tab. Data is exactly what the copy action
// serializes.
type View struct {
	Tab         TabID
	Title       string
	Summary     string
	Empty       bool
	Placeholder string
	Blocks      []Block
	Actions     []Action
	Data        interface{}
}

// Block is one piece of content. Only the fields of its Kind are set.
type Block struct {
	Kind  BlockKind
	Title string

	Text  string
	Pairs []KeyValue
	Items []Item
	Table *Table
	Code  *Code
	Cards []Card
}

// KeyValue is one labelled value. Missing values are rendered as a dash.
type KeyValue struct {
	Key     string
	Value   string
	Missing bool
}

// Item is one list entry
type Item struct {
	Badge  string
	Text   string
	Detail string
}

// Table is one positional table. Caption is derived from its index.
type Table struct {
	Index   int
	Caption string
	Header  []string
	Rows    [][]string
}

// Code is preformatted text in a named language
type Code struct {
	Language string
	Content  string
}

// Card is one image tile. PreviewHidden is set when Preview cannot be loaded;
// the card itself is kept.
type Card struct {
	Index         int
	Title         string
	Lines         []string
	Preview       string
	PreviewHidden bool
	Actions       []Action
}

// Action is an affordance. Index identifies the item for per-item actions.
type Action struct {
	Kind  ActionKind
	Label string
	Index int
}

func placeholder(msg string) Block {
	return Block{Kind: BlockPlaceholder, Text: msg}
}

func copyAction() Action {
	return Action{Kind: ActionCopy, Label: "Copy"}
}
