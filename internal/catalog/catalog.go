package catalog

import (
	"context"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sedfit/internal/model"
)

// Optional catalog columns, matched case-insensitively by header name.
const (
	ColParallax    = "parallax"
	ColParallaxErr = "parallax_err"
	ColL           = "l"
	ColB           = "b"
)

// ReadCatalog reads a catalog with a header row and columns
//
//	id, f1..fN, e1..eN[, parallax, parallax_err, l, b]
//
// where N is nfilt and the optional columns may appear in any order after
// the errors. An empty or NaN flux or error masks that band; an empty
// optional cell leaves the field absent. Lines starting with '#' are skipped.
func ReadCatalog(ctx context.Context, r io.Reader, nfilt int) (*model.Catalog, error) {
	if nfilt < 1 {
		return nil, eris.Errorf("catalog: need at least one band, got %d", nfilt)
	}

	var (
		cat    model.Catalog
		layout *columnLayout
	)
	err := drain(ctx, r, CSVOptions{Comment: '#', TrimSpace: true}, func(row Row) error {
		if layout == nil {
			l, err := parseHeader(row.Fields, nfilt)
			if err != nil {
				return eris.Wrapf(err, "catalog: line %d", row.Line)
			}
			layout = l
			return nil
		}
		obs, err := layout.observation(row.Fields)
		if err != nil {
			return eris.Wrapf(err, "catalog: line %d", row.Line)
		}
		cat.Observations = append(cat.Observations, obs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if layout == nil {
		return nil, eris.New("catalog: missing header row")
	}
	return &cat, nil
}

// columnLayout maps header names to field positions. Missing optional
// columns are -1.
type columnLayout struct {
	nfilt                       int
	width                       int
	parallax, parallaxErr, l, b int
}

func parseHeader(fields []string, nfilt int) (*columnLayout, error) {
	if len(fields) < 1+2*nfilt {
		return nil, eris.Errorf("header has %d columns, need at least %d for %d bands", len(fields), 1+2*nfilt, nfilt)
	}
	l := &columnLayout{nfilt: nfilt, width: len(fields), parallax: -1, parallaxErr: -1, l: -1, b: -1}
	for i := 1 + 2*nfilt; i < len(fields); i++ {
		switch strings.ToLower(fields[i]) {
		case ColParallax:
			l.parallax = i
		case ColParallaxErr:
			l.parallaxErr = i
		case ColL:
			l.l = i
		case ColB:
			l.b = i
		default:
			return nil, eris.Errorf("unknown column %q", fields[i])
		}
	}
	if (l.l < 0) != (l.b < 0) {
		return nil, eris.New("coordinates need both l and b columns")
	}
	return l, nil
}

func (c *columnLayout) observation(fields []string) (model.Observation, error) {
	if len(fields) != c.width {
		return model.Observation{}, eris.Errorf("row has %d columns, header has %d", len(fields), c.width)
	}
	obs := model.Observation{
		ID:   fields[0],
		Flux: make([]float64, c.nfilt),
		Err:  make([]float64, c.nfilt),
		Mask: make([]bool, c.nfilt),
	}
	for j := 0; j < c.nfilt; j++ {
		f, fok, err := parseCell(fields[1+j])
		if err != nil {
			return obs, eris.Wrapf(err, "flux %d", j+1)
		}
		e, eok, err := parseCell(fields[1+c.nfilt+j])
		if err != nil {
			return obs, eris.Wrapf(err, "error %d", j+1)
		}
		obs.Flux[j], obs.Err[j] = f, e
		obs.Mask[j] = fok && eok
	}

	var err error
	if obs.Parallax, err = optional(fields, c.parallax); err != nil {
		return obs, eris.Wrap(err, ColParallax)
	}
	if obs.ParallaxErr, err = optional(fields, c.parallaxErr); err != nil {
		return obs, eris.Wrap(err, ColParallaxErr)
	}
	lv, err := optional(fields, c.l)
	if err != nil {
		return obs, eris.Wrap(err, ColL)
	}
	bv, err := optional(fields, c.b)
	if err != nil {
		return obs, eris.Wrap(err, ColB)
	}
	if lv != nil && bv != nil {
		obs.Coord = &model.Coord{L: *lv, B: *bv}
	}
	return obs, nil
}

// parseCell parses a numeric cell. ok is false for empty or NaN cells.
func parseCell(s string) (v float64, ok bool, err error) {
	if s == "" {
		return math.NaN(), false, nil
	}
	v, err = strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, eris.Wrapf(err, "parse %q", s)
	}
	return v, !math.IsNaN(v), nil
}

func optional(fields []string, idx int) (*float64, error) {
	if idx < 0 {
		return nil, nil
	}
	v, ok, err := parseCell(fields[idx])
	if err != nil || !ok {
		return nil, err
	}
	return &v, nil
}
