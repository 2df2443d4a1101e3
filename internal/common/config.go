package common

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment key, e.g. RECEIPTS_PIPELINE_FORCE_OCR.
const EnvPrefix = "RECEIPTS"

// Config holds all application configuration
type Config struct {
	Pipeline PipelineConfig
	Extract  ExtractConfig
	OCR      OCRConfig
	Batch    BatchConfig
	Cache    CacheConfig
	Log      LogConfig
}

// PipelineConfig holds the validation and text-acquisition thresholds.
type PipelineConfig struct {
	MaxFileSizeBytes  int64
	LowTextThreshold  int     // a page with fewer trimmed chars is "low-text"
	LowTextPageRatio  float64 // OCR when low-text pages / total pages exceeds this
	MinTotalTextChars int     // OCR when the whole document has fewer chars
	OCRScale          float64
	OCRMaxPages       int
	ForceOCR          bool
	Language          string
	DefaultCurrency   string
	ProgressBuffer    int
}

// ExtractConfig holds date-validation bounds for the field extractors.
type ExtractConfig struct {
	MinYear     int
	FutureGrace time.Duration
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Pdftoppm          string
	Tesseract         string
	TessdataDir       string
	PSM               int
	OEM               int
	UpscaleBelowWidth int
}

// BatchConfig holds the batch and watch CLI settings.
type BatchConfig struct {
	Workers    int
	Timeout    time.Duration
	OutputPath string
	SkipHidden bool
	Debounce   time.Duration
}

// CacheConfig holds the sqlite result cache settings.
type CacheConfig struct {
	Enabled bool
	Path    string
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string
	Format string
}

var flagBindings = map[string]string{
	"pipeline.force_ocr":        "force-ocr",
	"pipeline.language":         "lang",
	"pipeline.ocr_max_pages":    "ocr-pages",
	"pipeline.default_currency": "currency",
	"batch.workers":             "workers",
	"batch.output_path":         "out",
	"batch.timeout":             "timeout",
	"cache.path":                "cache",
	"cache.enabled":             "use-cache",
	"log.level":                 "log-level",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pipeline.max_file_size_bytes", 25*1024*1024)
	v.SetDefault("pipeline.low_text_threshold", 50)
	v.SetDefault("pipeline.low_text_page_ratio", 0.5)
	v.SetDefault("pipeline.min_total_text_chars", 100)
	v.SetDefault("pipeline.ocr_scale", 2.0)
	v.SetDefault("pipeline.ocr_max_pages", 1)
	v.SetDefault("pipeline.force_ocr", false)
	v.SetDefault("pipeline.language", "eng")
	v.SetDefault("pipeline.default_currency", "USD")
	v.SetDefault("pipeline.progress_buffer", 32)

	v.SetDefault("extract.min_year", 1900)
	v.SetDefault("extract.future_grace", 24*time.Hour)

	v.SetDefault("ocr.pdftoppm", "pdftoppm")
	v.SetDefault("ocr.tesseract", "tesseract")
	v.SetDefault("ocr.tessdata_dir", "")
	v.SetDefault("ocr.psm", 6)
	v.SetDefault("ocr.oem", 1)
	v.SetDefault("ocr.upscale_below_width", 1000)

	v.SetDefault("batch.workers", 4)
	v.SetDefault("batch.timeout", 3*time.Minute)
	v.SetDefault("batch.output_path", "")
	v.SetDefault("batch.skip_hidden", true)
	v.SetDefault("batch.debounce", 500*time.Millisecond)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", "./receipts-cache.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// LoadConfig resolves configuration from defaults, an optional config file
// (RECEIPTS_CONFIG), RECEIPTS_* environment variables and, when fs is non-nil,
// any bound command-line flags. Later sources win.
func LoadConfig(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// tesseract's own variable is honored as a fallback.
	if err := v.BindEnv("ocr.tessdata_dir", EnvPrefix+"_OCR_TESSDATA_DIR", "TESSDATA_PREFIX"); err != nil {
		return nil, NewAppError("CONFIG_ERROR", "bind env", err)
	}

	if path := os.Getenv(EnvPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("read config file %s", path), err)
		}
	}

	if fs != nil {
		for key, name := range flagBindings {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, NewAppError("CONFIG_ERROR", "bind flag "+name, err)
				}
			}
		}
	}

	cfg := &Config{
		Pipeline: PipelineConfig{
			MaxFileSizeBytes:  v.GetInt64("pipeline.max_file_size_bytes"),
			LowTextThreshold:  v.GetInt("pipeline.low_text_threshold"),
			LowTextPageRatio:  v.GetFloat64("pipeline.low_text_page_ratio"),
			MinTotalTextChars: v.GetInt("pipeline.min_total_text_chars"),
			OCRScale:          v.GetFloat64("pipeline.ocr_scale"),
			OCRMaxPages:       v.GetInt("pipeline.ocr_max_pages"),
			ForceOCR:          v.GetBool("pipeline.force_ocr"),
			Language:          v.GetString("pipeline.language"),
			DefaultCurrency:   strings.ToUpper(v.GetString("pipeline.default_currency")),
			ProgressBuffer:    v.GetInt("pipeline.progress_buffer"),
		},
		Extract: ExtractConfig{
			MinYear:     v.GetInt("extract.min_year"),
			FutureGrace: v.GetDuration("extract.future_grace"),
		},
		OCR: OCRConfig{
			Pdftoppm:          v.GetString("ocr.pdftoppm"),
			Tesseract:         v.GetString("ocr.tesseract"),
			TessdataDir:       v.GetString("ocr.tessdata_dir"),
			PSM:               v.GetInt("ocr.psm"),
			OEM:               v.GetInt("ocr.oem"),
			UpscaleBelowWidth: v.GetInt("ocr.upscale_below_width"),
		},
		Batch: BatchConfig{
			Workers:    v.GetInt("batch.workers"),
			Timeout:    v.GetDuration("batch.timeout"),
			OutputPath: v.GetString("batch.output_path"),
			SkipHidden: v.GetBool("batch.skip_hidden"),
			Debounce:   v.GetDuration("batch.debounce"),
		},
		Cache: CacheConfig{
			Enabled: v.GetBool("cache.enabled"),
			Path:    v.GetString("cache.path"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	v := NewValidator().
		Field("pipeline.max_file_size_bytes", c.Pipeline.MaxFileSizeBytes, Int64Between(1, 25*1024*1024)).
		Field("pipeline.low_text_threshold", c.Pipeline.LowTextThreshold, IntAtLeast(0)).
		Field("pipeline.low_text_page_ratio", c.Pipeline.LowTextPageRatio, FloatBetween(0, 1)).
		Field("pipeline.min_total_text_chars", c.Pipeline.MinTotalTextChars, IntAtLeast(0)).
		Field("pipeline.ocr_scale", c.Pipeline.OCRScale, FloatBetween(0.5, 8)).
		Field("pipeline.ocr_max_pages", c.Pipeline.OCRMaxPages, IntAtLeast(1)).
		Field("pipeline.language", c.Pipeline.Language, Required).
		Field("pipeline.default_currency", c.Pipeline.DefaultCurrency, CurrencyCode).
		Field("pipeline.progress_buffer", c.Pipeline.ProgressBuffer, IntAtLeast(0)).
		Field("extract.min_year", c.Extract.MinYear, IntAtLeast(1)).
		Field("batch.workers", c.Batch.Workers, IntAtLeast(1)).
		Field("log.level", c.Log.Level, OneOf(validLogLevels...))

	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrValidation)
	}
	return nil
}
