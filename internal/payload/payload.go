// Package payload decodes the result document the backend stores on a job.
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind discriminates the payload variants
type Kind int

const (
	// KindNoData is a job without a stored document yet
	KindNoData Kind = iota
	// KindError is a stored error document
	KindError
	// KindSuccess is a stored scrape result
	KindSuccess
)

func (k Kind) String() string {
	switch k {
	case KindNoData:
		return "no_data"
	case KindError:
		return "error"
	case KindSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// Payload is one of NoData, *ErrorResult or *SuccessResult
type Payload interface {
	Kind() Kind
	sealed()
}

// NoData is returned for jobs that have not stored a document yet
type NoData struct{}

// Kind implements Payload
func (NoData) Kind() Kind { return KindNoData }
func (NoData) sealed()    {}

// ErrorResult is the document stored when a scrape failed
type ErrorResult struct {
	ErrorType       string   `json:"error_type"`
	Error           string   `json:"error"`
	LoadTimeSeconds *float64 `json:"load_time_seconds,omitempty"`
}

// Kind implements Payload
func (*ErrorResult) Kind() Kind { return KindError }
func (*ErrorResult) sealed()    {}

// SuccessResult is the document stored when a scrape finished. Every
// collection is non-nil after Parse.
type SuccessResult struct {
	Meta            Meta             `json:"meta"`
	Headings        []Heading        `json:"headings"`
	Links           []Link           `json:"links"`
	Images          []Image          `json:"images"`
	Text            []string         `json:"text"`
	Tables          [][][]string     `json:"tables"`
	Lists           []List           `json:"lists"`
	Technologies    []Technology     `json:"technologies"`
	SocialLinks     []SocialLink     `json:"social_links"`
	StructuredData  []StructuredData `json:"structured_data"`
	Stats           Stats            `json:"stats"`
	Screenshot      *string          `json:"screenshot,omitempty"`
	SelectorResults []SelectorResult `json:"selector_results"`

	// Raw is the decoded document exactly as stored
	Raw map[string]json.RawMessage `json:"-"`
}

// Kind implements Payload
func (*SuccessResult) Kind() Kind { return KindSuccess }
func (*SuccessResult) sealed()    {}

// Meta holds the page metadata
type Meta struct {
	Title         string `json:"title,omitempty"`
	Description   string `json:"description,omitempty"`
	Keywords      string `json:"keywords,omitempty"`
	OGTitle       string `json:"og_title,omitempty"`
	OGDescription string `json:"og_description,omitempty"`
	OGImage       string `json:"og_image,omitempty"`
	Favicon       string `json:"favicon,omitempty"`
	Canonical     string `json:"canonical,omitempty"`
	FinalURL      string `json:"final_url,omitempty"`
}

// Heading is one h1..h6 element
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Link is one anchor found on the page
type Link struct {
	URL      string `json:"url"`
	Text     string `json:"text"`
	Internal bool   `json:"internal"`
}

// Image is one img element. Width and height are copied from the markup and
// may be absent.
type Image struct {
	Src    string     `json:"src"`
	Alt    string     `json:"alt"`
	Width  *Dimension `json:"width,omitempty"`
	Height *Dimension `json:"height,omitempty"`
}

// List is one ul or ol element
type List struct {
	Type  string   `json:"type"`
	Items []string `json:"items"`
}

// Technology is one detected framework or platform
type Technology struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

// SocialLink is a link to a known social platform
type SocialLink struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
	Text     string `json:"text,omitempty"`
}

// StructuredData is one block of embedded machine-readable data, such as
// JSON-LD or OpenGraph
type StructuredData struct {
	Format string          `json:"format"`
	Data   json.RawMessage `json:"data"`
}

// SelectorResult is one element matched by the CSS selector submitted with the job
type SelectorResult struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
	HTML string `json:"html,omitempty"`
}

// Stats holds page counters. Missing counters stay nil.
type Stats struct {
	WordCount           *int     `json:"word_count,omitempty"`
	LinkCount           *int     `json:"link_count,omitempty"`
	InternalLinks       *int     `json:"internal_links,omitempty"`
	ExternalLinks       *int     `json:"external_links,omitempty"`
	ImageCount          *int     `json:"image_count,omitempty"`
	HeadingCount        *int     `json:"heading_count,omitempty"`
	TableCount          *int     `json:"table_count,omitempty"`
	ListCount           *int     `json:"list_count,omitempty"`
	ScriptCount         *int     `json:"script_count,omitempty"`
	InlineScriptCount   *int     `json:"inline_script_count,omitempty"`
	StyleCount          *int     `json:"style_count,omitempty"`
	HTMLSizeBytes       *int     `json:"html_size_bytes,omitempty"`
	TechCount           *int     `json:"tech_count,omitempty"`
	SocialCount         *int     `json:"social_count,omitempty"`
	StructuredDataCount *int     `json:"structured_data_count,omitempty"`
	LoadTimeSeconds     *float64 `json:"load_time_seconds,omitempty"`
}

// Dimension is an image size attribute. The markup value is kept as text
// whether the document stored it as a string or a number.
type Dimension string

// UnmarshalJSON implements the json.Unmarshaler interface for Dimension
func (d *Dimension) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*d = Dimension(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid dimension %s", data)
	}
	*d = Dimension(n.String())
	return nil
}

// Pixels returns the dimension as an integer when it is one
func (d Dimension) Pixels() (int, bool) {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(string(d)), "px"))
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseError is returned when a stored document cannot be decoded
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return "parse error: " + e.Reason
	}
	return fmt.Sprintf("parse error: %s: %v", e.Reason, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ReasonMalformed is the ParseError reason for documents that are not a JSON object
const ReasonMalformed = "malformed"

// Parse decodes a job's stored document. A nil or empty document is NoData.
func Parse(raw *string) (Payload, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return NoData{}, nil
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(*raw), &doc); err != nil {
		return nil, &ParseError{Reason: ReasonMalformed, Err: err}
	}
	if doc == nil {
		return nil, &ParseError{Reason: ReasonMalformed, Err: fmt.Errorf("document is null")}
	}

	if msg, ok := errorMessage(doc); ok {
		var fields struct {
			ErrorType       string   `json:"error_type"`
			LoadTimeSeconds *float64 `json:"load_time_seconds"`
		}
		if err := json.Unmarshal([]byte(*raw), &fields); err != nil {
			return nil, &ParseError{Reason: ReasonMalformed, Err: err}
		}
		return &ErrorResult{
			ErrorType:       fields.ErrorType,
			Error:           msg,
			LoadTimeSeconds: fields.LoadTimeSeconds,
		}, nil
	}

	res := &SuccessResult{}
	if err := json.Unmarshal([]byte(*raw), res); err != nil {
		return nil, &ParseError{Reason: ReasonMalformed, Err: err}
	}
	res.Raw = doc
	res.normalize()
	return res, nil
}

// errorMessage returns the error field when it marks the document as an error
// result. Only a non-empty value counts; an empty string or null does not.
func errorMessage(doc map[string]json.RawMessage) (string, bool) {
	v, ok := doc["error"]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s, s != ""
	}
	trimmed := bytes.TrimSpace(v)
	if bytes.Equal(trimmed, []byte("null")) {
		return "", false
	}
	return string(trimmed), true
}

func (r *SuccessResult) normalize() {
	if r.Headings == nil {
		r.Headings = []Heading{}
	}
	if r.Links == nil {
		r.Links = []Link{}
	}
	if r.Images == nil {
		r.Images = []Image{}
	}
	if r.Text == nil {
		r.Text = []string{}
	}
	if r.Tables == nil {
		r.Tables = [][][]string{}
	}
	for i, t := range r.Tables {
		if t == nil {
			r.Tables[i] = [][]string{}
		}
	}
	if r.Lists == nil {
		r.Lists = []List{}
	}
	for i := range r.Lists {
		if r.Lists[i].Items == nil {
			r.Lists[i].Items = []string{}
		}
	}
	if r.Technologies == nil {
		r.Technologies = []Technology{}
	}
	if r.SocialLinks == nil {
		r.SocialLinks = []SocialLink{}
	}
	if r.StructuredData == nil {
		r.StructuredData = []StructuredData{}
	}
	if r.SelectorResults == nil {
		r.SelectorResults = []SelectorResult{}
	}
	if r.Raw == nil {
		r.Raw = map[string]json.RawMessage{}
	}
	if r.Screenshot != nil && *r.Screenshot == "" {
		r.Screenshot = nil
	}
}

// LinkSplit counts internal and external links
func (r *SuccessResult) LinkSplit() (internal, external int) {
	for _, l := range r.Links {
		if l.Internal {
			internal++
		} else {
			external++
		}
	}
	return internal, external
}

// HasScreenshot reports whether the result carries a page capture
func (r *SuccessResult) HasScreenshot() bool {
	return r.Screenshot != nil
}
