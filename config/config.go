package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"sjsage522/tcasworker/pkg/errors"
)

// Stage names, in dependency order
const (
	StageUniversities = "universities"
	StageFaculties    = "faculties"
	StageFields       = "fields"
	StagePrograms     = "programs"
	StageRounds       = "rounds"
	StageFees         = "fees"
)

// StageOrder lists every stage leaves first
var StageOrder = []string{
	StageUniversities,
	StageFaculties,
	StageFields,
	StagePrograms,
	StageRounds,
	StageFees,
}

// Config represents the application configuration
type Config struct {
	// Target site
	BaseURL          string
	UniversitiesPath string

	// Renderer configuration
	Renderer          string
	ChromeAddr        string
	Headless          bool
	UserAgent         string
	NavigationTimeout time.Duration
	ContentTimeout    time.Duration
	ReadyTimeout      time.Duration
	PollInterval      time.Duration
	RequestsPerSecond float64

	// Stage runner configuration
	Workers    int
	RowRetries int

	// Filters
	FacultyKeyword string
	FieldKeywords  []string
	FeeLabels      []string

	// Datasets
	DataDir          string
	UniversitiesFile string
	FacultiesFile    string
	FieldsFile       string
	ProgramsFile     string
	RoundsFile       string
	FeesFile         string
	SkipLogFile      string

	// Cache configuration
	CacheBackend string
	MemcacheAddr string
	CacheTTL     time.Duration

	// Publisher configuration
	PublishBackend       string
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamMaxLength int
	SQLitePath           string

	// Environment
	Environment string
}

// StageConfig is everything a single stage run needs to know
type StageConfig struct {
	Name              string
	InputPath         string
	OutputPath        string
	Keywords          []string
	NavigationTimeout time.Duration
	ContentTimeout    time.Duration
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	redisStreamMaxLength, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "10000"))
	workers, _ := strconv.Atoi(getEnv("WORKERS", "1"))
	rowRetries, _ := strconv.Atoi(getEnv("ROW_RETRIES", "0"))
	rps, _ := strconv.ParseFloat(getEnv("REQUESTS_PER_SECOND", "1"), 64)
	headless, _ := strconv.ParseBool(getEnv("CHROME_HEADLESS", "true"))

	return &Config{
		BaseURL:              strings.TrimRight(getEnv("TCAS_BASE_URL", "https://course.mytcas.com"), "/"),
		UniversitiesPath:     getEnv("TCAS_UNIVERSITIES_PATH", "/universities"),
		Renderer:             getEnv("RENDERER", "chrome"),
		ChromeAddr:           getEnv("CHROME_ADDR", ""),
		Headless:             headless,
		UserAgent:            getEnv("USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/134.0.0.0 Safari/537.36"),
		NavigationTimeout:    getDuration("NAVIGATION_TIMEOUT_SECONDS", 30),
		ContentTimeout:       getDuration("CONTENT_TIMEOUT_SECONDS", 30),
		ReadyTimeout:         getDuration("READY_TIMEOUT_SECONDS", 10),
		PollInterval:         time.Duration(getInt("POLL_INTERVAL_MS", 250)) * time.Millisecond,
		RequestsPerSecond:    rps,
		Workers:              workers,
		RowRetries:           rowRetries,
		FacultyKeyword:       getEnv("FACULTY_KEYWORD", "วิศวกรรมศาสตร์"),
		FieldKeywords:        getList("FIELD_KEYWORDS", "คอมพิวเตอร์,ปัญญาประดิษฐ์"),
		FeeLabels:            getList("FEE_LABELS", "ค่าใช้จ่าย,expenses,cost"),
		DataDir:              getEnv("DATA_DIR", "data"),
		UniversitiesFile:     getEnv("UNIVERSITIES_FILE", "universities.csv"),
		FacultiesFile:        getEnv("FACULTIES_FILE", "universities_with_engineering.csv"),
		FieldsFile:           getEnv("FIELDS_FILE", "fields_computer.csv"),
		ProgramsFile:         getEnv("PROGRAMS_FILE", "programs_engineering.csv"),
		RoundsFile:           getEnv("ROUNDS_FILE", "programs_with_rounds.csv"),
		FeesFile:             getEnv("FEES_FILE", "programs_with_fees.csv"),
		SkipLogFile:          getEnv("SKIP_LOG_FILE", "skipped.log"),
		CacheBackend:         getEnv("CACHE_BACKEND", "none"),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", "localhost:11211"),
		CacheTTL:             getDuration("CACHE_TTL_SECONDS", 3600),
		PublishBackend:       getEnv("PUBLISH_BACKEND", "none"),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "tcas"),
		RedisStreamMaxLength: redisStreamMaxLength,
		SQLitePath:           getEnv("SQLITE_PATH", "data/tcas.db"),
		Environment:          getEnv("TCAS_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the pipeline cannot run with
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.NewConfiguration("TCAS_BASE_URL is required", nil)
	}
	if c.NavigationTimeout <= 0 || c.ContentTimeout <= 0 || c.ReadyTimeout <= 0 {
		return errors.NewConfiguration("timeouts must be positive", nil)
	}
	if c.PollInterval <= 0 {
		return errors.NewConfiguration("POLL_INTERVAL_MS must be positive", nil)
	}
	if c.Workers < 1 {
		return errors.NewConfiguration(fmt.Sprintf("WORKERS must be at least 1, got %d", c.Workers), nil)
	}
	if c.RowRetries < 0 {
		return errors.NewConfiguration("ROW_RETRIES must not be negative", nil)
	}
	if !oneOf(c.Renderer, "chrome", "http") {
		return errors.NewConfiguration(fmt.Sprintf("unknown renderer %q", c.Renderer), nil)
	}
	if !oneOf(c.CacheBackend, "none", "memory", "memcache") {
		return errors.NewConfiguration(fmt.Sprintf("unknown cache backend %q", c.CacheBackend), nil)
	}
	if !oneOf(c.PublishBackend, "none", "redis", "sqlite") {
		return errors.NewConfiguration(fmt.Sprintf("unknown publish backend %q", c.PublishBackend), nil)
	}
	if c.FacultyKeyword == "" || len(c.FieldKeywords) == 0 || len(c.FeeLabels) == 0 {
		return errors.NewConfiguration("keywords must not be empty", nil)
	}
	return nil
}

// Stage builds the per-stage configuration for the named stage. Each stage
// reads the file the previous stage wrote.
func (c *Config) Stage(name string) (StageConfig, error) {
	sc := StageConfig{
		Name:              name,
		NavigationTimeout: c.NavigationTimeout,
		ContentTimeout:    c.ContentTimeout,
	}

	switch name {
	case StageUniversities:
		sc.OutputPath = c.path(c.UniversitiesFile)
	case StageFaculties:
		sc.InputPath = c.path(c.UniversitiesFile)
		sc.OutputPath = c.path(c.FacultiesFile)
		sc.Keywords = []string{c.FacultyKeyword}
	case StageFields:
		sc.InputPath = c.path(c.FacultiesFile)
		sc.OutputPath = c.path(c.FieldsFile)
		sc.Keywords = c.FieldKeywords
	case StagePrograms:
		sc.InputPath = c.path(c.FieldsFile)
		sc.OutputPath = c.path(c.ProgramsFile)
	case StageRounds:
		sc.InputPath = c.path(c.ProgramsFile)
		sc.OutputPath = c.path(c.RoundsFile)
	case StageFees:
		sc.InputPath = c.path(c.ProgramsFile)
		sc.OutputPath = c.path(c.FeesFile)
		sc.Keywords = c.FeeLabels
	default:
		return StageConfig{}, errors.NewConfiguration(fmt.Sprintf("unknown stage %q", name), nil)
	}

	return sc, nil
}

func (c *Config) path(file string) string {
	if filepath.IsAbs(file) || c.DataDir == "" {
		return file
	}
	return filepath.Join(c.DataDir, file)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultSeconds int) time.Duration {
	return time.Duration(getInt(key, defaultSeconds)) * time.Second
}

// getList splits a comma-separated variable, dropping empty entries
func getList(key, defaultValue string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, defaultValue), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}
