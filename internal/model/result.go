package model

import "time"

// ResultRecord holds the persisted posterior summary for one star.
type ResultRecord struct {
	Index    int    `json:"index"`
	ObjectID string `json:"object_id"`

	// Resampled grid indices (with replacement) and their ML fits.
	ModelIdx []int           `json:"model_idx"`
	Scale    []float64       `json:"scale"`
	Av       []float64       `json:"av"`
	Rv       []float64       `json:"rv"`
	Cov      [][3][3]float64 `json:"cov"`
	LogPost  []float64       `json:"log_post"`

	LogEvidence float64 `json:"log_evidence"`
	Chi2Min     float64 `json:"chi2_min"`
	NBands      int     `json:"n_bands"`

	Draws *Draws `json:"draws,omitempty"`
}

// Draws are the resampled physical-unit Monte Carlo realizations.
type Draws struct {
	Dist  []float64 `json:"dist"` // kpc
	Av    []float64 `json:"av"`
	Rv    []float64 `json:"rv"`
	LogWt []float64 `json:"log_wt"`
}

// RunStatus represents the state of a catalog fit run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one invocation of the catalog fitter.
type Run struct {
	ID        string    `json:"id"`
	Status    RunStatus `json:"status"`
	NObjects  int       `json:"n_objects"`
	NDraws    int       `json:"n_draws"`
	Seed      uint64    `json:"seed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
