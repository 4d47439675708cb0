package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/microsoftgraph/msgraph-sdk-go/models/odataerrors"

	"exomigtool/internal/common/logger"
	"exomigtool/internal/common/ratelimit"
	"exomigtool/internal/common/retry"
)

// Status constants
const (
	StatusSuccess = "Success"
	StatusWarning = "Warning"
	StatusError   = "Error"
)

// ifEmpty returns defaultVal if s is empty, otherwise returns s
func ifEmpty(s, defaultVal string) string {
	if s == "" {
		return defaultVal
	}
	return s
}

// yesNo renders a flag the way the report columns expect it.
func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// pointerTo is a generic helper function to create pointers to values
func pointerTo[T any](v T) *T {
	return &v
}

// deref returns the pointed-to value or the zero value for nil.
func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// escapeODataString quotes s for use inside a single-quoted OData literal.
func escapeODataString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// printJSON writes data as indented JSON.
func printJSON(w io.Writer, data any) {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON output: %v\n", err)
	}
}

// graphErrorCode returns the OData error code and message of err, if any.
func graphErrorCode(err error) (code, message string, odataErr *odataerrors.ODataError) {
	if !errors.As(err, &odataErr) || odataErr.GetErrorEscaped() == nil {
		return "", "", odataErr
	}
	info := odataErr.GetErrorEscaped()
	return deref(info.GetCode()), deref(info.GetMessage()), odataErr
}

// isNotFound reports whether err is a Graph "resource not found" error.
func isNotFound(err error) bool {
	code, _, odataErr := graphErrorCode(err)
	if code == "Request_ResourceNotFound" || code == "ResourceNotFound" || code == "ErrorItemNotFound" {
		return true
	}
	return odataErr != nil && odataErr.ResponseStatusCode == 404
}

// enrichGraphAPIError adds throttling and service availability context to a
// Graph error. Other errors are returned unchanged.
func enrichGraphAPIError(err error, log *slog.Logger, operation string) error {
	if err == nil {
		return nil
	}
	code, message, odataErr := graphErrorCode(err)
	if odataErr == nil {
		return err
	}

	switch code {
	case "TooManyRequests", "activityLimitReached":
		logger.LogWarn(log, "Graph API rate limit exceeded", "operation", operation, "code", code)

		retryAfter := ""
		if headers := odataErr.GetResponseHeaders(); headers != nil {
			if values := headers.Get("Retry-After"); len(values) > 0 {
				retryAfter = values[0]
			}
		}

		msg := fmt.Sprintf("rate limit exceeded during %s", operation)
		if retryAfter != "" {
			msg += fmt.Sprintf(" (retry after %s seconds)", retryAfter)
		}
		msg += ". Consider lowering -ratelimit"
		return fmt.Errorf("%s: %w", msg, err)

	case "ServiceUnavailable", "GatewayTimeout":
		logger.LogWarn(log, "Graph API service error", "operation", operation, "code", code, "message", message)
		return fmt.Errorf("service temporarily unavailable during %s (code: %s): %w", operation, code, err)

	case "Authorization_RequestDenied", "Forbidden":
		return fmt.Errorf("%s denied: the application needs Directory.Read.All (code: %s): %w", operation, code, err)
	}

	if code != "" {
		logger.LogDebug(log, "Graph API error", "operation", operation, "code", code, "message", message)
		return fmt.Errorf("%s failed (code: %s, message: %s): %w", operation, code, message, err)
	}
	return err
}

// isRetryableGraphError reports whether a Graph call is worth retrying:
// throttling, transient 5xx responses and network errors.
func isRetryableGraphError(err error) bool {
	if err == nil {
		return false
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && retry.IsRetryableStatus(respErr.StatusCode) {
		return true
	}
	var odataErr *odataerrors.ODataError
	if errors.As(err, &odataErr) && retry.IsRetryableStatus(odataErr.ResponseStatusCode) {
		return true
	}

	return retry.IsRetryableError(err)
}

// graphCall runs one Graph request under the rate limiter with retries.
func graphCall(ctx context.Context, config *Config, limiter *ratelimit.Limiter, log *slog.Logger, operation func() error) error {
	return retry.RetryWithBackoff(ctx, retry.Policy{
		MaxRetries: config.MaxRetries,
		BaseDelay:  config.RetryDelay,
		Retryable:  isRetryableGraphError,
		Logger:     log,
	}, func() error {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		return operation()
	})
}
