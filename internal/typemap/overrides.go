package typemap

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/danielzillmann-hue/transformation-agent/internal/common"
)

// DocumentFetcher retrieves a document by path or URI.
type DocumentFetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// ParseOverrides reads BASE=TARGET lines. Blank lines and lines starting with
// '#' are ignored; malformed lines are logged and skipped. Keys are normalized
// the same way as declared types.
func ParseOverrides(r io.Reader, logger *slog.Logger) (map[string]string, error) {
	logger = common.LoggerOrDefault(logger)
	overrides := make(map[string]string)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		key = BaseType(key)
		value = strings.TrimSpace(value)
		if !ok || key == "" || value == "" {
			logger.Warn("skipping incomplete type mapping line", "line", lineNo, "content", line)
			continue
		}
		overrides[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read type overrides: %w", err)
	}

	return overrides, nil
}

// LoadOverrides fetches and parses the override document at uri. An empty uri
// yields no overrides. Fetch or parse failures are logged and also yield no
// overrides, so a missing override file never stops a run.
func LoadOverrides(ctx context.Context, fetcher DocumentFetcher, uri string, logger *slog.Logger) map[string]string {
	logger = common.LoggerOrDefault(logger)
	if strings.TrimSpace(uri) == "" {
		return map[string]string{}
	}

	data, err := fetcher.Fetch(ctx, uri)
	if err != nil {
		logger.Warn("failed to load type overrides", "location", uri, "error", err)
		return map[string]string{}
	}

	overrides, err := ParseOverrides(bytes.NewReader(data), logger)
	if err != nil {
		logger.Warn("failed to parse type overrides", "location", uri, "error", err)
		return map[string]string{}
	}

	logger.Info("loaded type overrides", "location", uri, "count", len(overrides))
	return overrides
}
