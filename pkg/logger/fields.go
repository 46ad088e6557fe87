package logger

import (
	"time"

	"go.uber.org/zap"
)

// Endpoint is the report endpoint being queried.
func Endpoint(v string) zap.Field { return zap.String("endpoint", v) }

// Status is an HTTP status code.
func Status(v int) zap.Field { return zap.Int("status", v) }

// Attempt is the 1-based attempt number of a retried request.
func Attempt(v int) zap.Field { return zap.Int("attempt", v) }

// Offset is the pagination offset of a page request.
func Offset(v int) zap.Field { return zap.Int("offset", v) }

// Count is a number of items.
func Count(v int) zap.Field { return zap.Int("count", v) }

// RequestID correlates a request with vendor-side logs.
func RequestID(v string) zap.Field { return zap.String("request_id", v) }

// Delay is a backoff delay.
func Delay(v time.Duration) zap.Field { return zap.Duration("delay", v) }

// Err attaches an error.
func Err(err error) zap.Field { return zap.Error(err) }
