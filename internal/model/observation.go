package model

// Coord is a galactic (l, b) position in degrees.
type Coord struct {
	L float64 `json:"l"`
	B float64 `json:"b"`
}

// Observation is the photometry of one star. It is read-only during a fit.
type Observation struct {
	ID   string    `json:"id"`
	Flux []float64 `json:"flux"` // linear flux densities, 10**(-0.4 mag)
	Err  []float64 `json:"err"`
	Mask []bool    `json:"mask"` // true when observed; nil means every band was

	Parallax    *float64 `json:"parallax,omitempty"`
	ParallaxErr *float64 `json:"parallax_err,omitempty"`
	Coord       *Coord   `json:"coord,omitempty"`
}

// HasParallax reports whether a usable parallax and its error are present.
func (o *Observation) HasParallax() bool {
	return o.Parallax != nil && o.ParallaxErr != nil
}

// ParallaxValues returns the parallax and its error, or NaN for missing values.
func (o *Observation) ParallaxValues() (float64, float64) {
	p, pe := nan(), nan()
	if o.Parallax != nil {
		p = *o.Parallax
	}
	if o.ParallaxErr != nil {
		pe = *o.ParallaxErr
	}
	return p, pe
}

// Catalog is an ordered set of observations with a shared band layout.
type Catalog struct {
	Observations []Observation `json:"observations"`
}

// Len returns the number of stars in the catalog.
func (c *Catalog) Len() int { return len(c.Observations) }
