package payload

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestParse_NoData(t *testing.T) {
	for _, raw := range []*string{nil, strPtr(""), strPtr("   ")} {
		p, err := Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, KindNoData, p.Kind())
		assert.IsType(t, NoData{}, p)
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "{not json"},
		{"array", `["a"]`},
		{"null document", "null"},
		{"wrong collection type", `{"links":"nope"}`},
		{"wrong table shape", `{"tables":[["a"]]}`},
		{"bad error_type", `{"error":"x","error_type":5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse(strPtr(tt.raw))
			assert.Nil(t, p)
			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, ReasonMalformed, perr.Reason)
			assert.Contains(t, err.Error(), "malformed")
		})
	}
}

func TestParse_ErrorResult(t *testing.T) {
	p, err := Parse(strPtr(`{"error":"x","error_type":"Timeout"}`))
	require.NoError(t, err)
	res, ok := p.(*ErrorResult)
	require.True(t, ok)
	assert.Equal(t, "x", res.Error)
	assert.Equal(t, "Timeout", res.ErrorType)
	assert.Nil(t, res.LoadTimeSeconds)

	p, err = Parse(strPtr(`{"error":"net::ERR_NAME_NOT_RESOLVED","error_type":"Error","load_time_seconds":1.25}`))
	require.NoError(t, err)
	res = p.(*ErrorResult)
	require.NotNil(t, res.LoadTimeSeconds)
	assert.Equal(t, 1.25, *res.LoadTimeSeconds)
}

func TestParse_EmptyErrorIsSuccess(t *testing.T) {
	for _, raw := range []string{`{"error":"","meta":{"title":"T"}}`, `{"error":null,"meta":{"title":"T"}}`} {
		p, err := Parse(strPtr(raw))
		require.NoError(t, err)
		assert.Equal(t, KindSuccess, p.Kind(), raw)
	}
}

func TestParse_SuccessDefaults(t *testing.T) {
	p, err := Parse(strPtr(`{"meta":{"title":"T"},"links":[]}`))
	require.NoError(t, err)
	res, ok := p.(*SuccessResult)
	require.True(t, ok)

	assert.Equal(t, "T", res.Meta.Title)
	assert.NotNil(t, res.Links)
	assert.Empty(t, res.Links)
	assert.NotNil(t, res.Headings)
	assert.NotNil(t, res.Images)
	assert.NotNil(t, res.Text)
	assert.NotNil(t, res.Tables)
	assert.NotNil(t, res.Lists)
	assert.NotNil(t, res.Technologies)
	assert.NotNil(t, res.SocialLinks)
	assert.NotNil(t, res.StructuredData)
	assert.NotNil(t, res.SelectorResults)
	assert.False(t, res.HasScreenshot())
	assert.Nil(t, res.Stats.WordCount)
	assert.Contains(t, res.Raw, "meta")
	assert.Contains(t, res.Raw, "links")
}

func TestParse_FullDocument(t *testing.T) {
	raw := `{
		"meta": {"title": "Example", "description": "d", "final_url": "https://example.com/"},
		"headings": [{"level": 1, "text": "Hello"}],
		"links": [
			{"url": "https://example.com/a", "text": "a", "internal": true},
			{"url": "https://other.org", "text": "o", "internal": false},
			{"url": "https://example.com/b", "text": "b", "internal": true}
		],
		"images": [
			{"src": "https://example.com/x.png", "alt": "x", "width": "120", "height": 80},
			{"src": "/y.png", "alt": "", "width": null}
		],
		"text": ["para"],
		"tables": [[["H1","H2"],["a","b"]]],
		"lists": [{"type": "ul", "items": ["one", "two"]}, {"type": "ol"}],
		"technologies": [{"name": "react", "source": "script/markup"}],
		"social_links": [{"platform": "github", "url": "https://github.com/x"}],
		"structured_data": [{"format": "JSON-LD", "data": {"@type": "Organization"}}],
		"selector_results": [{"tag": "h1", "text": "Hello", "html": "<h1>Hello</h1>"}],
		"stats": {"word_count": 10, "link_count": 3, "load_time_seconds": 0.82},
		"screenshot": ""
	}`

	p, err := Parse(strPtr(raw))
	require.NoError(t, err)
	res := p.(*SuccessResult)

	assert.Equal(t, "https://example.com/", res.Meta.FinalURL)
	assert.Equal(t, []Heading{{Level: 1, Text: "Hello"}}, res.Headings)
	internal, external := res.LinkSplit()
	assert.Equal(t, 2, internal)
	assert.Equal(t, 1, external)

	require.Len(t, res.Images, 2)
	require.NotNil(t, res.Images[0].Width)
	assert.Equal(t, Dimension("120"), *res.Images[0].Width)
	assert.Equal(t, Dimension("80"), *res.Images[0].Height)
	px, ok := res.Images[0].Height.Pixels()
	assert.True(t, ok)
	assert.Equal(t, 80, px)
	assert.Nil(t, res.Images[1].Width)

	assert.Equal(t, [][][]string{{{"H1", "H2"}, {"a", "b"}}}, res.Tables)
	assert.Equal(t, []string{}, res.Lists[1].Items)
	assert.Equal(t, "JSON-LD", res.StructuredData[0].Format)
	assert.JSONEq(t, `{"@type":"Organization"}`, string(res.StructuredData[0].Data))
	assert.Equal(t, "h1", res.SelectorResults[0].Tag)

	require.NotNil(t, res.Stats.WordCount)
	assert.Equal(t, 10, *res.Stats.WordCount)
	assert.Nil(t, res.Stats.ImageCount)
	assert.Equal(t, 0.82, *res.Stats.LoadTimeSeconds)

	assert.False(t, res.HasScreenshot(), "empty screenshot counts as absent")
}

func TestDimension(t *testing.T) {
	tests := []struct {
		in     Dimension
		px     int
		pixels bool
	}{
		{"120", 120, true},
		{"120px", 120, true},
		{"50%", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		px, ok := tt.in.Pixels()
		assert.Equal(t, tt.pixels, ok, string(tt.in))
		assert.Equal(t, tt.px, px, string(tt.in))
	}
}

// 1x1 transparent PNG
var pngPixel = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func TestDecodeScreenshot(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(pngPixel)
	p, err := Parse(strPtr(`{"meta":{},"screenshot":"` + encoded + `"}`))
	require.NoError(t, err)
	res := p.(*SuccessResult)
	require.True(t, res.HasScreenshot())

	capture, err := res.DecodeScreenshot()
	require.NoError(t, err)
	assert.Equal(t, "image/png", capture.MIME)
	assert.Equal(t, ".png", capture.Extension)
	assert.Equal(t, len(pngPixel), capture.Size())

	url, ok := res.ScreenshotDataURL()
	assert.True(t, ok)
	assert.Equal(t, "data:image/png;base64,"+encoded, url)

	withPrefix := "data:image/png;base64," + encoded
	res.Screenshot = &withPrefix
	capture, err = res.DecodeScreenshot()
	require.NoError(t, err)
	assert.Equal(t, "image/png", capture.MIME)

	res.Screenshot = nil
	_, err = res.DecodeScreenshot()
	assert.ErrorIs(t, err, ErrNoScreenshot)

	bad := "!!!"
	res.Screenshot = &bad
	_, err = res.DecodeScreenshot()
	assert.Error(t, err)
	url, ok = res.ScreenshotDataURL()
	assert.True(t, ok)
	assert.Equal(t, "data:application/octet-stream;base64,!!!", url)
}

func TestScreenshotDataURL_JPEG(t *testing.T) {
	jpeg := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01}
	encoded := base64.StdEncoding.EncodeToString(jpeg)
	p, err := Parse(strPtr(`{"meta":{},"screenshot":"` + encoded + `"}`))
	require.NoError(t, err)
	res := p.(*SuccessResult)

	capture, err := res.DecodeScreenshot()
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", capture.MIME)

	url, ok := res.ScreenshotDataURL()
	require.True(t, ok)
	assert.Equal(t, "data:image/jpeg;base64,"+encoded, url)
}
