package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Defaults applied to fields left unset.
const (
	DefaultFreezingPoint    = 273.15
	DefaultStepsPerDay      = 4
	DefaultNSEThreshold     = 0.85
	DefaultTopN             = 50
	DefaultFormat           = "tsv"
	DefaultDateColumn       = "datetime"
	DefaultValueColumn      = "temp"
	DefaultDateLayout       = "01/02/2006"
	DefaultEnsembleColumn   = 3
	DefaultProfileColumn    = 4
	DefaultEnsembleSkip     = 1461
	DefaultEnsembleHeader   = 1
	DefaultEnsembleRows     = 365
	DefaultTrialFilePattern = "met-input-trial%d.txt"
)

// Environment variables that override file configuration.
const (
	EnvTimescaleDBConnection = "ISOHYDRO_TIMESCALEDB_CONNECTION"
	EnvSQLitePath            = "ISOHYDRO_SQLITE_PATH"
	EnvWorkers               = "ISOHYDRO_WORKERS"
)

var validate = validator.New()

// Load reads the configuration from provider, applies environment overrides and
// defaults, then validates the result.
func Load(provider ConfigProvider) (*ConfigData, error) {
	cfg, err := provider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}
	if err := cfg.ApplyEnvironment(); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvironment overrides storage and worker settings from the environment. A .env
// file loaded at startup feeds these as well.
func (c *ConfigData) ApplyEnvironment() error {
	if v := os.Getenv(EnvTimescaleDBConnection); v != "" {
		if c.Storage.TimescaleDB == nil {
			c.Storage.TimescaleDB = &TimescaleDBData{}
		}
		c.Storage.TimescaleDB.ConnectionString = v
	}
	if v := os.Getenv(EnvSQLitePath); v != "" {
		if c.Storage.SQLite == nil {
			c.Storage.SQLite = &SQLiteData{}
		}
		c.Storage.SQLite.Path = v
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvWorkers, v, err)
		}
		c.Workers = n
	}
	return nil
}

// ApplyDefaults fills every unset optional field.
func (c *ConfigData) ApplyDefaults() {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}

	if r := c.Runoff; r != nil {
		if r.FreezingPoint == 0 {
			r.FreezingPoint = DefaultFreezingPoint
		}
		if r.StepsPerDay == 0 {
			r.StepsPerDay = DefaultStepsPerDay
		}
		if r.SummerMonths == nil {
			r.SummerMonths = []int{5, 6, 7, 8, 9}
		}
		if r.SpringMonths == nil {
			r.SpringMonths = []int{11, 12, 1, 2, 3, 4, 5, 6}
		}
		if r.ThawMonths == nil {
			r.ThawMonths = []int{7, 8}
		}
		if r.FallMonths == nil {
			r.FallMonths = []int{9, 10}
		}
	}

	if cal := c.Calibration; cal != nil {
		if cal.NSEThreshold == nil {
			t := DefaultNSEThreshold
			cal.NSEThreshold = &t
		}
		if cal.TopN == 0 {
			cal.TopN = DefaultTopN
		}
		if cal.Format == "" {
			cal.Format = DefaultFormat
		}
		obs := &cal.Observations
		if obs.DateColumn == "" {
			obs.DateColumn = DefaultDateColumn
		}
		if obs.ValueColumn == "" {
			obs.ValueColumn = DefaultValueColumn
		}
		if obs.DateLayout == "" {
			obs.DateLayout = DefaultDateLayout
		}
		for i := range cal.Variables {
			v := &cal.Variables[i]
			if v.Column == nil {
				v.Column = intPtr(defaultColumn(v))
			}
			if v.Skip == nil {
				v.Skip = intPtr(DefaultEnsembleSkip)
			}
			if v.Header == nil {
				v.Header = intPtr(DefaultEnsembleHeader)
			}
			if v.Rows == 0 {
				v.Rows = DefaultEnsembleRows
			}
		}
	}

	if h := c.Hypercube; h != nil {
		if h.ParameterFile == "" && c.Calibration != nil {
			h.ParameterFile = c.Calibration.ParameterFile
		}
		if h.FilePattern == "" {
			h.FilePattern = DefaultTrialFilePattern
		}
	}
}

// Validate checks field constraints and the cross-section requirements that struct tags
// cannot express.
func (c *ConfigData) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if r := c.Runoff; r != nil {
		if r.StepsPerDay < 1 {
			return fmt.Errorf("invalid configuration: runoff steps-per-day must be positive")
		}
	}
	if h := c.Hypercube; h != nil {
		if c.Runoff == nil {
			return fmt.Errorf("invalid configuration: hypercube requires a runoff section for forcing and isotope files")
		}
		if h.ParameterFile == "" {
			return fmt.Errorf("invalid configuration: hypercube parameter-file is required")
		}
		for _, pattern := range []string{h.FilePattern, h.AccumulationPattern} {
			if pattern != "" && strings.Count(pattern, "%d") != 1 {
				return fmt.Errorf("invalid configuration: hypercube file pattern %q needs exactly one %%d", pattern)
			}
		}
	}
	return nil
}

// RequireRunoffParams reports an error naming the first hydrology parameter missing from
// a standalone runoff configuration. Hypercube runs take these values from each trial.
func (r *RunoffData) RequireRunoffParams() error {
	for _, f := range []struct {
		name string
		set  bool
	}{
		{"melt-ratio", r.MeltRatio != nil},
		{"rp-ratio-summer", r.RPRatioSummer != nil},
		{"rp-ratio-winter", r.RPRatioWinter != nil},
		{"rsm-ratio", r.RSMRatio != nil},
		{"period", r.Period != nil},
		{"sigma", r.Sigma != nil},
		{"thresh-spring", r.ThreshSpring != nil},
		{"thresh-fall", r.ThreshFall != nil},
	} {
		if !f.set {
			return fmt.Errorf("invalid configuration: runoff %s is required", f.name)
		}
	}
	if r.OutputFile == "" {
		return fmt.Errorf("invalid configuration: runoff output-file is required")
	}
	return nil
}

// defaultColumn picks the lake profile column for profile variables and the surface column
// for everything else.
func defaultColumn(v *VariableData) int {
	if strings.Contains(strings.ToLower(v.Name), "profile") ||
		strings.Contains(strings.ToLower(filepath.Base(v.Pattern)), "profile") {
		return DefaultProfileColumn
	}
	return DefaultEnsembleColumn
}

func intPtr(v int) *int { return &v }
