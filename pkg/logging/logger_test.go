package logging

import (
	"testing"

	"github.com/forumly/pagefeed/pkg/config"
)

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		format string
	}{
		{
			name:   "json info",
			level:  "INFO",
			format: "json",
		},
		{
			name:   "text debug",
			level:  "DEBUG",
			format: "text",
		},
		{
			name:   "invalid level falls back to info",
			level:  "bogus",
			format: "json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.LoggingConfig{
				Level:  tt.level,
				Format: tt.format,
			}
			if err := InitLogger(cfg); err != nil {
				t.Fatalf("InitLogger() error: %v", err)
			}
			if GetLogger() == nil {
				t.Fatal("GetLogger() returned nil after InitLogger")
			}
		})
	}
}

func TestGetLoggerFallback(t *testing.T) {
	oldLogger := Logger
	defer func() { Logger = oldLogger }()

	Logger = nil
	if GetLogger() == nil {
		t.Error("GetLogger() should fall back to a default logger")
	}
}
