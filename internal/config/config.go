package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB

	// Pipeline defaults
	DefaultOCRDPI         = 200
	DefaultMinTextLength  = 60
	DefaultOCRPageTimeout = 30 * time.Second
	DefaultOCRLanguage    = "eng"
	DefaultAITimeout      = 30 * time.Second
	DefaultAIExcerptLimit = 4000
	DefaultAIModel        = "gemini-1.5-flash"
	DefaultWorkers        = 4

	// Directory permissions
	DefaultDirPerm = 0o750

	envPrefix = "PVP"
)

// Config holds all configuration for the PVP extraction server
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Document locations
	PDFDirectory    string
	OutputDirectory string

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum PDF file size in bytes

	OCR OCRConfig
	AI  AIConfig

	// Workers bounds how many entity extractors run at once.
	Workers int
}

// OCRConfig controls the scanned-page fallback of the text layer.
type OCRConfig struct {
	Enabled       bool
	DPI           int
	MinTextLength int
	PageTimeout   time.Duration
	Language      string
	Tesseract     string
	Pdftoppm      string
}

// AIConfig controls the optional Gemini collaborator. It stays disabled
// unless both Project and Region are set.
type AIConfig struct {
	Project      string
	Region       string
	Model        string
	Timeout      time.Duration
	ExcerptLimit int
}

// Enabled reports whether enough is configured to build a client.
func (a AIConfig) Enabled() bool {
	return a.Project != "" && a.Region != ""
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:            ModeStdio,
		Host:            DefaultHost,
		Port:            DefaultPort,
		PDFDirectory:    currentDir,
		OutputDirectory: filepath.Join(currentDir, "output"),
		Version:         "1.0.0",
		ServerName:      "mcp-pvp-extractor",
		LogLevel:        DefaultLogLevel,
		MaxFileSize:     DefaultMaxFileSize,
		OCR: OCRConfig{
			Enabled:       true,
			DPI:           DefaultOCRDPI,
			MinTextLength: DefaultMinTextLength,
			PageTimeout:   DefaultOCRPageTimeout,
			Language:      DefaultOCRLanguage,
			Tesseract:     "tesseract",
			Pdftoppm:      "pdftoppm",
		},
		AI: AIConfig{
			Model:        DefaultAIModel,
			Timeout:      DefaultAITimeout,
			ExcerptLimit: DefaultAIExcerptLimit,
		},
		Workers: DefaultWorkers,
	}
}

// LoadFromFlags parses command line flags and environment variables and
// returns a validated configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	for _, dir := range []*string{&cfg.PDFDirectory, &cfg.OutputDirectory} {
		if *dir == "" {
			continue
		}
		if expanded, err := filepath.Abs(*dir); err == nil {
			*dir = expanded
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// flag name -> viper key; both are the same so PVP_OCR_DPI maps to ocr-dpi.
var flagKeys = []string{
	"mode", "host", "port", "dir", "output-dir", "loglevel", "maxfilesize",
	"ocr", "ocr-dpi", "ocr-min-text", "ocr-page-timeout", "ocr-lang", "tesseract", "pdftoppm",
	"ai-project", "ai-region", "ai-model", "ai-timeout", "ai-excerpt",
	"workers",
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.PDFDirectory)
	viper.SetDefault("output-dir", cfg.OutputDirectory)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("ocr", cfg.OCR.Enabled)
	viper.SetDefault("ocr-dpi", cfg.OCR.DPI)
	viper.SetDefault("ocr-min-text", cfg.OCR.MinTextLength)
	viper.SetDefault("ocr-page-timeout", cfg.OCR.PageTimeout)
	viper.SetDefault("ocr-lang", cfg.OCR.Language)
	viper.SetDefault("tesseract", cfg.OCR.Tesseract)
	viper.SetDefault("pdftoppm", cfg.OCR.Pdftoppm)
	viper.SetDefault("ai-project", cfg.AI.Project)
	viper.SetDefault("ai-region", cfg.AI.Region)
	viper.SetDefault("ai-model", cfg.AI.Model)
	viper.SetDefault("ai-timeout", cfg.AI.Timeout)
	viper.SetDefault("ai-excerpt", cfg.AI.ExcerptLimit)
	viper.SetDefault("workers", cfg.Workers)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.PDFDirectory, "Directory containing protocol PDFs")
	pflag.String("output-dir", cfg.OutputDirectory, "Directory for exported workbooks")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")

	pflag.Bool("ocr", cfg.OCR.Enabled, "OCR pages whose native text is too short")
	pflag.Int("ocr-dpi", cfg.OCR.DPI, "Render resolution for OCR pages")
	pflag.Int("ocr-min-text", cfg.OCR.MinTextLength, "Native text length below which a page is OCRed")
	pflag.Duration("ocr-page-timeout", cfg.OCR.PageTimeout, "Upper bound for rendering and OCR of one page")
	pflag.String("ocr-lang", cfg.OCR.Language, "Tesseract language")
	pflag.String("tesseract", cfg.OCR.Tesseract, "tesseract binary")
	pflag.String("pdftoppm", cfg.OCR.Pdftoppm, "pdftoppm binary")

	pflag.String("ai-project", cfg.AI.Project, "Google Cloud project for Gemini (empty disables AI)")
	pflag.String("ai-region", cfg.AI.Region, "Vertex AI region")
	pflag.String("ai-model", cfg.AI.Model, "Gemini model name")
	pflag.Duration("ai-timeout", cfg.AI.Timeout, "Upper bound for one AI call")
	pflag.Int("ai-excerpt", cfg.AI.ExcerptLimit, "Characters of document text sent to the AI")

	pflag.Int("workers", cfg.Workers, "Entity extractors run in parallel")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, key := range flagKeys {
		_ = viper.BindPFlag(key, pflag.Lookup(key))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nMCP PVP Extractor - structured data from process validation protocol PDFs\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                          # stdio mode, current directory\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/data/protocols --ocr=false        # no OCR fallback\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --port=8081                # HTTP mode with /metrics\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --ai-project=my-proj --ai-region=us-central1\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  Every flag maps to PVP_<FLAG>, dashes become underscores (PVP_OCR_DPI, PVP_AI_PROJECT).\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.PDFDirectory = viper.GetString("dir")
	cfg.OutputDirectory = viper.GetString("output-dir")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")

	cfg.OCR.Enabled = viper.GetBool("ocr")
	cfg.OCR.DPI = viper.GetInt("ocr-dpi")
	cfg.OCR.MinTextLength = viper.GetInt("ocr-min-text")
	cfg.OCR.PageTimeout = viper.GetDuration("ocr-page-timeout")
	cfg.OCR.Language = viper.GetString("ocr-lang")
	cfg.OCR.Tesseract = viper.GetString("tesseract")
	cfg.OCR.Pdftoppm = viper.GetString("pdftoppm")

	cfg.AI.Project = viper.GetString("ai-project")
	cfg.AI.Region = viper.GetString("ai-region")
	cfg.AI.Model = viper.GetString("ai-model")
	cfg.AI.Timeout = viper.GetDuration("ai-timeout")
	cfg.AI.ExcerptLimit = viper.GetInt("ai-excerpt")

	cfg.Workers = viper.GetInt("workers")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.PDFDirectory == "" {
		return errors.New("PDF directory cannot be empty")
	}

	if _, err := os.Stat(c.PDFDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.PDFDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create PDF directory %s: %w", c.PDFDirectory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access PDF directory %s: %w", c.PDFDirectory, err)
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	if c.OCR.Enabled {
		if c.OCR.DPI < 72 || c.OCR.DPI > 600 {
			return fmt.Errorf("ocr dpi must be between 72 and 600, got %d", c.OCR.DPI)
		}
		if c.OCR.PageTimeout <= 0 {
			return errors.New("ocr page timeout must be positive")
		}
	}
	if c.OCR.MinTextLength < 0 {
		return errors.New("ocr minimum text length cannot be negative")
	}

	if (c.AI.Project == "") != (c.AI.Region == "") {
		return errors.New("ai project and region must be set together")
	}
	if c.AI.Enabled() {
		if c.AI.Timeout <= 0 {
			return errors.New("ai timeout must be positive")
		}
		if c.AI.ExcerptLimit <= 0 {
			return errors.New("ai excerpt limit must be positive")
		}
	}

	if c.Workers < 1 {
		return errors.New("workers must be at least 1")
	}

	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, PDFDirectory: %s, LogLevel: %s, MaxFileSize: %d, "+
		"OCR: %t@%ddpi, AI: %t, Workers: %d}",
		c.Mode, c.Host, c.Port, c.PDFDirectory, c.LogLevel, c.MaxFileSize,
		c.OCR.Enabled, c.OCR.DPI, c.AI.Enabled(), c.Workers)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
