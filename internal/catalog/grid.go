package catalog

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/sedfit/internal/model"
)

// Manifest describes the layout of a grid CSV.
type Manifest struct {
	Filters []string `yaml:"filters"`
	Labels  []string `yaml:"labels"`

	// DefinesGrid lists the labels that span the grid (e.g. feh, mini).
	// The rest are ancillary predictions.
	DefinesGrid []string `yaml:"defines_grid"`

	// Header is true when the CSV starts with a header row.
	Header bool `yaml:"header"`
}

// LoadManifest reads a YAML manifest from path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "grid: read manifest %s", path)
	}
	return ParseManifest(data)
}

// ParseManifest decodes and validates a YAML manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrap(err, "grid: parse manifest")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest names at least one filter and that every
// grid-defining label exists.
func (m *Manifest) Validate() error {
	if len(m.Filters) == 0 {
		return eris.New("grid: manifest lists no filters")
	}
	seen := make(map[string]bool, len(m.Labels))
	for _, l := range m.Labels {
		if seen[l] {
			return eris.Errorf("grid: duplicate label %q", l)
		}
		seen[l] = true
	}
	for _, d := range m.DefinesGrid {
		if !seen[d] {
			return eris.Errorf("grid: defines_grid names unknown label %q", d)
		}
	}
	return nil
}

// labelMask marks the labels listed in DefinesGrid.
func (m *Manifest) labelMask() []bool {
	defines := make(map[string]bool, len(m.DefinesGrid))
	for _, d := range m.DefinesGrid {
		defines[d] = true
	}
	mask := make([]bool, len(m.Labels))
	for i, l := range m.Labels {
		mask[i] = defines[l]
	}
	return mask
}

// ReadGrid reads one model per row: for each filter its (mag, r0, dr)
// coefficients, followed by the manifest's labels.
func ReadGrid(ctx context.Context, r io.Reader, m *Manifest) (*model.Grid, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	nfilt, nlabel := len(m.Filters), len(m.Labels)
	width := 3*nfilt + nlabel

	grid := &model.Grid{
		LabelNames: m.Labels,
		LabelMask:  m.labelMask(),
		Filters:    m.Filters,
	}
	skipHeader := m.Header
	err := drain(ctx, r, CSVOptions{Comment: '#', TrimSpace: true}, func(row Row) error {
		if skipHeader {
			skipHeader = false
			return nil
		}
		if len(row.Fields) != width {
			return eris.Errorf("grid: line %d has %d columns, want %d", row.Line, len(row.Fields), width)
		}
		vals, err := parseFloats(row.Fields)
		if err != nil {
			return eris.Wrapf(err, "grid: line %d", row.Line)
		}
		coeffs := make([][3]float64, nfilt)
		for j := range coeffs {
			copy(coeffs[j][:], vals[3*j:3*j+3])
		}
		grid.Coeffs = append(grid.Coeffs, coeffs)
		if nlabel > 0 {
			grid.Labels = append(grid.Labels, vals[3*nfilt:])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	return grid, nil
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, s := range fields {
		v, ok, err := parseCell(s)
		if err != nil {
			return nil, eris.Wrapf(err, "column %d", i+1)
		}
		if !ok {
			return nil, eris.Errorf("column %d is empty", i+1)
		}
		out[i] = v
	}
	return out, nil
}
