// Package regionmap parses and validates the mapping between source
// lines and rectangular regions on rendered pages.
//
// The wire encoding is a base64 text-safe wrapper around a gzip
// compressed JSON object {version, pages, mappings}. Decode reverses
// exactly that pipeline and fails with ErrMalformedPayload, which is
// distinct from a compile transport failure: a corrupt payload must
// never be confused with a failed compile.
package regionmap

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrMalformedPayload indicates a region-map payload that could not be
// decoded, decompressed, or parsed, or that fails validation.
var ErrMalformedPayload = errors.New("malformed region map payload")

// PageGeometry describes one rendered page in the compiler's native
// unit space.
type PageGeometry struct {
	Page   int     `json:"page"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Mapping relates one source line to a rectangle on a rendered page.
// Coordinates are in the compiler's native unit space, not screen
// pixels. Multiple mappings may share a source line (wrapped text).
type Mapping struct {
	SourceLine int     `json:"line"`
	Page       int     `json:"page"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Label      string  `json:"label,omitempty"`
}

// Map is the parsed region map for one compiled artifact.
type Map struct {
	Version  int            `json:"version"`
	Pages    []PageGeometry `json:"pages"`
	Mappings []Mapping      `json:"mappings"`
}

// wireMap mirrors Map with pointer fields so that missing required
// keys can be told apart from present-but-empty ones.
type wireMap struct {
	Version  *int            `json:"version"`
	Pages    *[]PageGeometry `json:"pages"`
	Mappings *[]Mapping      `json:"mappings"`
}

// Decode reverses the wire encoding: base64 decode, gzip decompress,
// JSON parse, then validation. All failures wrap ErrMalformedPayload.
func Decode(payload string) (*Map, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrMalformedPayload, err)
	}

	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: gzip: %v", ErrMalformedPayload, err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: decompress: %v", ErrMalformedPayload, err)
	}

	return Parse(data)
}

// Parse parses and validates an uncompressed JSON region map. This is
// the inline-mappings form of the compile response.
func Parse(data []byte) (*Map, error) {
	var w wireMap
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: parse: %v", ErrMalformedPayload, err)
	}
	if w.Version == nil {
		return nil, fmt.Errorf("%w: missing version", ErrMalformedPayload)
	}
	if w.Pages == nil {
		return nil, fmt.Errorf("%w: missing pages", ErrMalformedPayload)
	}
	if w.Mappings == nil {
		return nil, fmt.Errorf("%w: missing mappings", ErrMalformedPayload)
	}

	m := &Map{Version: *w.Version, Pages: *w.Pages, Mappings: *w.Mappings}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Encode produces the wire encoding of the map: JSON, gzip, base64.
func Encode(m *Map) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode region map: %w", err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return "", fmt.Errorf("encode region map: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("encode region map: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// validate checks the invariants every mapping must hold.
func (m *Map) validate() error {
	pages := make(map[int]bool, len(m.Pages))
	for _, p := range m.Pages {
		pages[p.Page] = true
	}

	for i, mp := range m.Mappings {
		if mp.SourceLine < 1 {
			return fmt.Errorf("%w: mapping %d: source line %d < 1",
				ErrMalformedPayload, i, mp.SourceLine)
		}
		if !pages[mp.Page] {
			return fmt.Errorf("%w: mapping %d: unknown page %d",
				ErrMalformedPayload, i, mp.Page)
		}
	}
	return nil
}

// IsEmpty returns true if the map contains no mappings.
func (m *Map) IsEmpty() bool {
	return len(m.Mappings) == 0
}

// MappingsForLine returns all mappings for the given source line.
func (m *Map) MappingsForLine(line int) []Mapping {
	var out []Mapping
	for _, mp := range m.Mappings {
		if mp.SourceLine == line {
			out = append(out, mp)
		}
	}
	return out
}

// MappingAt returns the mapping whose rectangle contains the given
// point on the given page, if any. Used for click-to-line navigation;
// when no mapping contains the point, navigation is a no-op.
func (m *Map) MappingAt(page int, x, y float64) (Mapping, bool) {
	for _, mp := range m.Mappings {
		if mp.Page != page {
			continue
		}
		if x >= mp.X && x <= mp.X+mp.Width && y >= mp.Y && y <= mp.Y+mp.Height {
			return mp, true
		}
	}
	return Mapping{}, false
}

// PageGeometry returns the geometry for the given page index.
func (m *Map) PageGeometry(page int) (PageGeometry, bool) {
	for _, p := range m.Pages {
		if p.Page == page {
			return p, true
		}
	}
	return PageGeometry{}, false
}
