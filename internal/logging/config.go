package logging

import (
	"kvbench/internal/config"
)

// DevelopmentLoggingConfig returns logging configuration optimized for development
func DevelopmentLoggingConfig() config.LoggingConfig {
	return config.LoggingConfig{
		Level:                "debug",
		Format:               "console",
		Output:               "stderr",
		EnablePerformanceLog: true,
	}
}

// BenchmarkLoggingConfig keeps stdout free for the report.
func BenchmarkLoggingConfig() config.LoggingConfig {
	return config.LoggingConfig{
		Level:                "info",
		Format:               "text",
		Output:               "stderr",
		EnablePerformanceLog: false,
	}
}

// TestLoggingConfig returns logging configuration optimized for testing
func TestLoggingConfig() config.LoggingConfig {
	return config.LoggingConfig{
		Level:                "error", // Minimal logging during tests
		Format:               "json",
		Output:               "stderr",
		EnablePerformanceLog: false,
	}
}

// SetupEnvironmentLogging configures logging based on environment
func SetupEnvironmentLogging(cfg *config.Config, environment string) {
	switch environment {
	case "development", "dev":
		cfg.Logging = DevelopmentLoggingConfig()
	case "benchmark", "bench", "production", "prod":
		cfg.Logging = BenchmarkLoggingConfig()
	case "test", "testing":
		cfg.Logging = TestLoggingConfig()
	}
}
