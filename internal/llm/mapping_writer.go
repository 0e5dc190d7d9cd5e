package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/danielzillmann-hue/transformation-agent/internal/common"
	"github.com/danielzillmann-hue/transformation-agent/internal/model"
)

// MappingWriter asks a model to express an ETL mapping as one warehouse
// SELECT statement.
type MappingWriter struct {
	*caller
	logger *slog.Logger
}

// NewMappingWriter wraps a client with its own rate limit and retry policy.
// Use TableClassifier.MappingWriter to share them with classification.
func NewMappingWriter(client Client, cfg Config, logger *slog.Logger) *MappingWriter {
	return &MappingWriter{
		caller: newCaller(client, cfg),
		logger: common.LoggerOrDefault(logger),
	}
}

// WriteMapping returns the SQL body for the mapping's view.
func (w *MappingWriter) WriteMapping(ctx context.Context, req model.MappingRequest) (string, error) {
	var sql string
	err := w.call(ctx, BuildMappingPrompt(req), mappingWriterSystemPrompt, func(text string) error {
		s, err := parseMappingSQL(text)
		if err != nil {
			return err
		}
		sql = s
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", common.ErrMappingFailed, req.MappingName, err)
	}

	w.logger.Debug("model wrote mapping", "mapping", req.MappingName, "bytes", len(sql))
	return sql, nil
}

type mappingResponse struct {
	SQL   string `json:"sql"`
	Query string `json:"query"`
}

// parseMappingSQL pulls the statement out of {"sql": "..."} and checks that
// it reads rather than writes.
func parseMappingSQL(text string) (string, error) {
	var resp mappingResponse
	if err := ParseInto(text, &resp); err != nil {
		return "", err
	}

	sql := strings.TrimSpace(firstNonEmpty(resp.SQL, resp.Query))
	sql = strings.TrimSpace(strings.TrimSuffix(sql, ";"))
	if sql == "" {
		return "", common.ErrEmptyModelResponse
	}

	head := strings.ToUpper(strings.Fields(sql)[0])
	if head != "SELECT" && head != "WITH" {
		return "", fmt.Errorf("%w: starts with %s", common.ErrNotASelect, head)
	}
	return sql, nil
}
