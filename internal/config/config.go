// Package config loads sedfit settings from config.yaml and SEDFIT_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/sedfit/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
	Batch  BatchConfig  `yaml:"batch" mapstructure:"batch"`
	Retry  RetryConfig  `yaml:"retry" mapstructure:"retry"`
	Fit    FitConfig    `yaml:"fit" mapstructure:"fit"`
	Prior  PriorConfig  `yaml:"prior" mapstructure:"prior"`
	Output OutputConfig `yaml:"output" mapstructure:"output"`
	Seed   uint64       `yaml:"seed" mapstructure:"seed"`
}

// StoreConfig selects and configures the result store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite | postgres
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// BatchConfig sizes the worker pool.
type BatchConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// RetryConfig controls retries of transient store errors.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
}

// FitConfig holds the numerical fit settings.
type FitConfig struct {
	AvLim model.Bounds `yaml:"avlim" mapstructure:"avlim"`
	RvLim model.Bounds `yaml:"rvlim" mapstructure:"rvlim"`

	// AvGauss is an optional Gaussian Av prior applied during optimization.
	// When set, the dust prior is not applied again during integration.
	AvGauss *model.Gaussian `yaml:"av_gauss" mapstructure:"av_gauss"`
	RvGauss model.Gaussian  `yaml:"rv_gauss" mapstructure:"rv_gauss"`

	LTol          float64 `yaml:"ltol" mapstructure:"ltol"`
	LTolSubthresh float64 `yaml:"ltol_subthresh" mapstructure:"ltol_subthresh"`
	InitThresh    float64 `yaml:"init_thresh" mapstructure:"init_thresh"`

	Selection string  `yaml:"selection" mapstructure:"selection"` // weight | cdf
	WtThresh  float64 `yaml:"wt_thresh" mapstructure:"wt_thresh"`
	CDFThresh float64 `yaml:"cdf_thresh" mapstructure:"cdf_thresh"`

	NMCPrior int  `yaml:"nmc_prior" mapstructure:"nmc_prior"`
	DimPrior bool `yaml:"dim_prior" mapstructure:"dim_prior"`

	MagMax      float64   `yaml:"mag_max" mapstructure:"mag_max"`
	MerrMin     float64   `yaml:"merr_min" mapstructure:"merr_min"`
	PhotOffsets []float64 `yaml:"phot_offsets" mapstructure:"phot_offsets"`
}

// PriorConfig selects the distance, dust and grid priors.
type PriorConfig struct {
	Distance string         `yaml:"distance" mapstructure:"distance"` // galactic | flat
	Galactic GalacticConfig `yaml:"galactic" mapstructure:"galactic"`

	Dust     string  `yaml:"dust" mapstructure:"dust"` // flat | linear
	DustRate float64 `yaml:"dust_rate" mapstructure:"dust_rate"`
	DustStd  float64 `yaml:"dust_std" mapstructure:"dust_std"`

	AgeWeight bool `yaml:"age_weight" mapstructure:"age_weight"`
	Gradient  bool `yaml:"gradient" mapstructure:"gradient"`
}

// GalacticConfig holds the thin-disk geometry in kpc.
type GalacticConfig struct {
	R0 float64 `yaml:"r0" mapstructure:"r0"`
	Z0 float64 `yaml:"z0" mapstructure:"z0"`
	Lr float64 `yaml:"lr" mapstructure:"lr"`
	Lz float64 `yaml:"lz" mapstructure:"lz"`
}

// OutputConfig controls what is persisted and when.
type OutputConfig struct {
	// RunningIO writes each star as soon as it is fit; otherwise all records
	// are written in one batch at the end.
	RunningIO bool `yaml:"running_io" mapstructure:"running_io"`
	SaveDraws bool `yaml:"save_draws" mapstructure:"save_draws"`
	NDraws    int  `yaml:"ndraws" mapstructure:"ndraws"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SEDFIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "sedfit.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("batch.workers", 1)
	v.SetDefault("retry.max_attempts", 4)
	v.SetDefault("retry.initial_backoff", "100ms")
	v.SetDefault("retry.max_backoff", "5s")
	v.SetDefault("fit.avlim.min", 0.0)
	v.SetDefault("fit.avlim.max", 20.0)
	v.SetDefault("fit.rvlim.min", 1.0)
	v.SetDefault("fit.rvlim.max", 8.0)
	v.SetDefault("fit.rv_gauss.mean", 3.32)
	v.SetDefault("fit.rv_gauss.std", 0.18)
	v.SetDefault("fit.ltol", 3e-2)
	v.SetDefault("fit.ltol_subthresh", 1e-2)
	v.SetDefault("fit.init_thresh", 5e-3)
	v.SetDefault("fit.selection", "weight")
	v.SetDefault("fit.wt_thresh", 5e-3)
	v.SetDefault("fit.cdf_thresh", 2e-3)
	v.SetDefault("fit.nmc_prior", 50)
	v.SetDefault("fit.dim_prior", true)
	v.SetDefault("fit.mag_max", 50.0)
	v.SetDefault("fit.merr_min", 0.25)
	v.SetDefault("prior.distance", "galactic")
	v.SetDefault("prior.galactic.r0", 8.15)
	v.SetDefault("prior.galactic.z0", 0.025)
	v.SetDefault("prior.galactic.lr", 2.6)
	v.SetDefault("prior.galactic.lz", 0.3)
	v.SetDefault("prior.dust", "flat")
	v.SetDefault("prior.age_weight", true)
	v.SetDefault("prior.gradient", true)
	v.SetDefault("output.running_io", true)
	v.SetDefault("output.save_draws", false)
	v.SetDefault("output.ndraws", 250)
	v.SetDefault("seed", 1)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. Fit settings are validated
// separately by FitConfig.Validate so they surface as configuration errors.
func (c *Config) Validate(command string) error {
	var errs []error
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlite_path is required for the sqlite driver"))
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("store.database_url is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not sqlite or postgres", c.Store.Driver))
	}

	if command == "fit" {
		if c.Batch.Workers < 1 {
			errs = append(errs, fmt.Errorf("batch.workers must be at least 1, got %d", c.Batch.Workers))
		}
		if c.Output.NDraws < 1 {
			errs = append(errs, fmt.Errorf("output.ndraws must be at least 1, got %d", c.Output.NDraws))
		}
	}

	if len(errs) > 0 {
		return eris.Wrap(errors.Join(errs...), "config: validate")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
