// Package config loads and validates isohydro configuration from YAML files or a SQLite
// settings database.
package config

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure. Each job reads its own
// section; a section is only required when its job runs.
type ConfigData struct {
	Runoff      *RunoffData      `yaml:"runoff,omitempty" json:"runoff,omitempty" validate:"omitempty"`
	Calibration *CalibrationData `yaml:"calibration,omitempty" json:"calibration,omitempty" validate:"omitempty"`
	Hypercube   *HypercubeData   `yaml:"hypercube,omitempty" json:"hypercube,omitempty" validate:"omitempty"`
	Storage     StorageData      `yaml:"storage,omitempty" json:"storage,omitempty"`
	Metrics     MetricsData      `yaml:"metrics,omitempty" json:"metrics,omitempty"`

	// Workers bounds the per-trial worker pools.
	Workers int `yaml:"workers,omitempty" json:"workers,omitempty" validate:"gte=0"`
}

// RunoffData configures the runoff generator. The hydrology ratios have no defaults and
// must be set for the runoff job; the hypercube job takes them from each trial instead.
type RunoffData struct {
	ForcingFile      string `yaml:"forcing-file" json:"forcing_file" validate:"required"`
	IsotopeFile      string `yaml:"isotope-file" json:"isotope_file" validate:"required"`
	OutputFile       string `yaml:"output-file" json:"output_file"`
	AccumulationFile string `yaml:"accumulation-file,omitempty" json:"accumulation_file,omitempty"`
	Header           bool   `yaml:"header,omitempty" json:"header,omitempty"`

	MeltRatio     *float64 `yaml:"melt-ratio,omitempty" json:"melt_ratio,omitempty" validate:"omitempty,gte=0,lte=1"`
	RPRatioSummer *float64 `yaml:"rp-ratio-summer,omitempty" json:"rp_ratio_summer,omitempty" validate:"omitempty,gte=0,lte=1"`
	RPRatioWinter *float64 `yaml:"rp-ratio-winter,omitempty" json:"rp_ratio_winter,omitempty" validate:"omitempty,gte=0,lte=1"`
	RSMRatio      *float64 `yaml:"rsm-ratio,omitempty" json:"rsm_ratio,omitempty" validate:"omitempty,gte=0,lte=1"`
	GlacierFlux   float64  `yaml:"glacier-flux,omitempty" json:"glacier_flux,omitempty" validate:"gte=0"`
	Period        *float64 `yaml:"period,omitempty" json:"period,omitempty" validate:"omitempty,gte=0"`
	Sigma         *float64 `yaml:"sigma,omitempty" json:"sigma,omitempty" validate:"omitempty,gte=0"`
	ThreshSpring  *int     `yaml:"thresh-spring,omitempty" json:"thresh_spring,omitempty" validate:"omitempty,gte=0"`
	ThreshFall    *int     `yaml:"thresh-fall,omitempty" json:"thresh_fall,omitempty" validate:"omitempty,gte=0"`
	ThreshAvg     bool     `yaml:"thresh-avg,omitempty" json:"thresh_avg,omitempty"`

	FreezingPoint float64 `yaml:"freezing-point,omitempty" json:"freezing_point,omitempty" validate:"gte=0"`
	StepsPerDay   int     `yaml:"steps-per-day,omitempty" json:"steps_per_day,omitempty" validate:"gte=0"`

	SummerMonths []int `yaml:"summer-months,omitempty" json:"summer_months,omitempty" validate:"dive,min=1,max=12"`
	SpringMonths []int `yaml:"spring-months,omitempty" json:"spring_months,omitempty" validate:"dive,min=1,max=12"`
	ThawMonths   []int `yaml:"thaw-months,omitempty" json:"thaw_months,omitempty" validate:"dive,min=1,max=12"`
	FallMonths   []int `yaml:"fall-months,omitempty" json:"fall_months,omitempty" validate:"dive,min=1,max=12"`
}

// CalibrationData configures ensemble scoring.
type CalibrationData struct {
	ParameterFile string          `yaml:"parameter-file" json:"parameter_file" validate:"required"`
	EnsembleDir   string          `yaml:"ensemble-dir" json:"ensemble_dir" validate:"required"`
	Observations  ObservationData `yaml:"observations" json:"observations"`
	Variables     []VariableData  `yaml:"variables" json:"variables" validate:"required,min=1,dive"`

	NSEThreshold *float64 `yaml:"nse-threshold,omitempty" json:"nse_threshold,omitempty"`
	MaxRSR       float64  `yaml:"max-rsr,omitempty" json:"max_rsr,omitempty" validate:"gte=0"`
	TopN         int      `yaml:"top-n,omitempty" json:"top_n,omitempty" validate:"gte=0"`

	OutputDir string `yaml:"output-dir" json:"output_dir" validate:"required"`
	Format    string `yaml:"format,omitempty" json:"format,omitempty" validate:"omitempty,oneof=tsv json msgpack"`
}

// ObservationData locates the observation file and its columns. Days, when set,
// replaces the day of year computed from each observation date.
type ObservationData struct {
	File        string `yaml:"file" json:"file" validate:"required"`
	DateColumn  string `yaml:"date-column,omitempty" json:"date_column,omitempty"`
	ValueColumn string `yaml:"value-column,omitempty" json:"value_column,omitempty"`
	DateLayout  string `yaml:"date-layout,omitempty" json:"date_layout,omitempty"`
	Days        []int  `yaml:"days,omitempty" json:"days,omitempty" validate:"dive,min=1"`
}

// VariableData describes one ensemble output variable, such as surface or profile
// temperature.
type VariableData struct {
	Name    string `yaml:"name" json:"name" validate:"required"`
	Pattern string `yaml:"pattern" json:"pattern" validate:"required"`
	Column  *int   `yaml:"column,omitempty" json:"column,omitempty" validate:"omitempty,gte=0"`
	Skip    *int   `yaml:"skip,omitempty" json:"skip,omitempty" validate:"omitempty,gte=0"`
	Header  *int   `yaml:"header,omitempty" json:"header,omitempty" validate:"omitempty,gte=0"`
	Rows    int    `yaml:"rows,omitempty" json:"rows,omitempty" validate:"gte=0"`
}

// HypercubeData configures per-trial runoff generation. The forcing and isotope files and
// the non-trial runoff settings come from the runoff section.
type HypercubeData struct {
	ParameterFile       string `yaml:"parameter-file,omitempty" json:"parameter_file,omitempty"`
	OutputDir           string `yaml:"output-dir" json:"output_dir" validate:"required"`
	FilePattern         string `yaml:"file-pattern,omitempty" json:"file_pattern,omitempty"`
	AccumulationPattern string `yaml:"accumulation-pattern,omitempty" json:"accumulation_pattern,omitempty"`
	Trials              []int  `yaml:"trials,omitempty" json:"trials,omitempty" validate:"dive,min=1"`
}

// StorageData holds the configuration for the optional run stores
type StorageData struct {
	SQLite      *SQLiteData      `yaml:"sqlite,omitempty" json:"sqlite,omitempty" validate:"omitempty"`
	TimescaleDB *TimescaleDBData `yaml:"timescaledb,omitempty" json:"timescaledb,omitempty" validate:"omitempty"`
}

type SQLiteData struct {
	Path string `yaml:"path" json:"path" validate:"required"`
}

type TimescaleDBData struct {
	ConnectionString string `yaml:"connection-string" json:"connection_string" validate:"required"`
	Hypertable       bool   `yaml:"hypertable,omitempty" json:"hypertable,omitempty"`
}

// MetricsData configures the metrics textfile written at the end of a run.
type MetricsData struct {
	Textfile string `yaml:"textfile,omitempty" json:"textfile,omitempty"`
}
