package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/camagru/camagru/internal/logging"
	"github.com/camagru/camagru/internal/metrics"
	"github.com/jackc/pgx/v5"
)

type queryStartKey struct{}

type queryStart struct {
	operation string
	at        time.Time
}

// queryTracer records the duration and outcome of every query
type queryTracer struct {
	logger *logging.Logger
}

func (t queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, queryStart{operation: operationName(data.SQL), at: time.Now()})
}

func (t queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}
	duration := time.Since(start.at)

	// a missing row is an answer, not a failure
	err := data.Err
	if errors.Is(err, pgx.ErrNoRows) {
		err = nil
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordDatabaseOperation(start.operation, status, duration.Seconds())
	t.logger.LogDatabaseOperation(start.operation, duration, err)
}

// operationName reduces a statement to its leading keyword
func operationName(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	switch op := strings.ToLower(fields[0]); op {
	case "select", "insert", "update", "delete", "with":
		return op
	default:
		return "other"
	}
}
