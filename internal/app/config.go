package app

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	AppEnv            string
	HTTPAddr          string
	DBDriver          string
	DBDSN             string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifeMins int
	CSRFEnforced      bool
	RateLimitPerMin   int
	CORSOrigins       []string
	MaxUploadMB       int
	PDFToTextPath     string
	LogLevel          string
}

// LoadConfig reads the given dotenv files (".env" when none are named) and
// then the environment. Variables already set in the environment win over
// the files, and missing files are ignored.
func LoadConfig(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}

	return Config{
		AppEnv:            envOrDefault("APP_ENV", "development"),
		HTTPAddr:          envOrDefault("HTTP_ADDR", ":8080"),
		DBDriver:          strings.ToLower(envOrDefault("DB_DRIVER", "memory")),
		DBDSN:             os.Getenv("DB_DSN"),
		DBMaxOpenConns:    intOrDefault("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    intOrDefault("DB_MAX_IDLE_CONNS", 25),
		DBConnMaxLifeMins: intOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30),
		CSRFEnforced:      boolOrDefault("CSRF_ENFORCED", false),
		RateLimitPerMin:   intOrDefault("RATE_LIMIT_PER_MINUTE", 120),
		CORSOrigins:       listOrDefault("CORS_ORIGINS", []string{"*"}),
		MaxUploadMB:       intOrDefault("MAX_UPLOAD_MB", 10),
		PDFToTextPath:     os.Getenv("PDFTOTEXT_PATH"),
		LogLevel:          strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
	}, nil
}

func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func (c Config) ConnMaxLifetime() time.Duration {
	return time.Duration(c.DBConnMaxLifeMins) * time.Minute
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsToInt(v string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(v))
	return n
}

func intOrDefault(key string, fallback int) int {
	v := stringsToInt(os.Getenv(key))
	if v <= 0 {
		return fallback
	}
	return v
}

func boolOrDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func listOrDefault(key string, fallback []string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(key), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
