// Package config reads the service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/geocached/internal/geo"
)

type FeedCfg struct {
	Enabled bool
	Brokers []string
	Topic   string
	GroupID string
}

type Config struct {
	Addr            string
	LogLevel        string
	LogConsole      bool
	LogSampleN      int
	Precision       uint
	ResultCacheSize int
	HotHalfLife     time.Duration
	HotTopN         int
	HotThreshold    float64
	HotLogSample    float64
	MetricsEnabled  bool
	MetricsPath     string
	Feed            FeedCfg
}

const defaultPrecision = 8

func FromEnv() Config {
	prec := getint("GEOHASH_PRECISION", defaultPrecision)
	if geo.ValidatePrecision(prec) != nil {
		prec = defaultPrecision
	}

	cacheSize := getint("RESULT_CACHE_SIZE", 1024)
	if cacheSize < 0 {
		cacheSize = 0
	}

	return Config{
		Addr:            getenv("ADDR", ":8090"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogConsole:      getbool("LOG_CONSOLE", false),
		LogSampleN:      getint("LOG_SAMPLE_N", 0),
		Precision:       uint(prec),
		ResultCacheSize: cacheSize,
		HotHalfLife:     getduration("HOT_HALF_LIFE", time.Minute),
		HotTopN:         getint("HOT_TOP_N", 10),
		HotThreshold:    getfloat("HOT_THRESHOLD", 0),
		HotLogSample:    getfloat("LOG_HOTNESS_SAMPLE", 0.01),
		MetricsEnabled:  getbool("METRICS_ENABLED", true),
		MetricsPath:     getpath("METRICS_PATH", "/metrics"),
		Feed: FeedCfg{
			Enabled: getbool("FEED_ENABLED", false),
			Brokers: splitCSV(getenv("KAFKA_BROKERS", "localhost:9092")),
			Topic:   getenv("KAFKA_TOPIC", "object-locations"),
			GroupID: getenv("KAFKA_GROUP_ID", "geocached"),
		},
	}
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

// getpath returns a route path with exactly one leading slash and no
// trailing one.
func getpath(k, def string) string {
	p := strings.Trim(getenv(k, def), "/")
	if p == "" {
		return def
	}
	return "/" + p
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
