//go:build !integration
// +build !integration

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	abstractions "github.com/microsoft/kiota-abstractions-go"
	"github.com/microsoftgraph/msgraph-sdk-go/models/odataerrors"

	"exomigtool/internal/common/ratelimit"
)

// newODataError builds the error the Graph SDK returns for a failed request.
func newODataError(status int, code, message string) *odataerrors.ODataError {
	odataErr := odataerrors.NewODataError()
	odataErr.ResponseStatusCode = status
	if code != "" {
		info := odataerrors.NewMainError()
		info.SetCode(pointerTo(code))
		info.SetMessage(pointerTo(message))
		odataErr.SetErrorEscaped(info)
	}
	return odataErr
}

func TestEscapeODataString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"sales@contoso.com", "sales@contoso.com"},
		{"o'brien@contoso.com", "o''brien@contoso.com"},
		{"''", "''''"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := escapeODataString(tt.in); got != tt.want {
			t.Errorf("escapeODataString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain error", err: errors.New("not found"), want: false},
		{name: "resource code", err: newODataError(404, "Request_ResourceNotFound", "Resource 'x' does not exist"), want: true},
		{name: "status only", err: newODataError(404, "", ""), want: true},
		{name: "wrapped", err: fmt.Errorf("lookup: %w", newODataError(404, "ResourceNotFound", "")), want: true},
		{name: "forbidden", err: newODataError(403, "Authorization_RequestDenied", "Insufficient privileges"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNotFound(tt.err); got != tt.want {
				t.Errorf("isNotFound() = %t, want %t", got, tt.want)
			}
		})
	}
}

func TestEnrichGraphAPIError(t *testing.T) {
	throttled := newODataError(429, "TooManyRequests", "Too many requests")
	headers := abstractions.NewResponseHeaders()
	headers.Add("Retry-After", "30")
	throttled.ResponseHeaders = headers

	tests := []struct {
		name    string
		err     error
		wantNil bool
		wantMsg []string
	}{
		{name: "nil error returns nil", err: nil, wantNil: true},
		{name: "non-OData error returned unchanged", err: errors.New("dial tcp: timeout"), wantMsg: []string{"dial tcp: timeout"}},
		{name: "throttling", err: throttled, wantMsg: []string{"rate limit exceeded during GET /users", "retry after 30 seconds", "-ratelimit"}},
		{name: "service error", err: newODataError(503, "ServiceUnavailable", "busy"), wantMsg: []string{"service temporarily unavailable", "ServiceUnavailable"}},
		{name: "permission denied", err: newODataError(403, "Authorization_RequestDenied", "Insufficient privileges"), wantMsg: []string{"denied", "Directory.Read.All"}},
		{name: "other code", err: newODataError(400, "BadRequest", "Invalid filter clause"), wantMsg: []string{"code: BadRequest", "Invalid filter clause"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := enrichGraphAPIError(tt.err, nil, "GET /users")
			if tt.wantNil {
				if got != nil {
					t.Errorf("enrichGraphAPIError() = %v, want nil", got)
				}
				return
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("enrichGraphAPIError() does not wrap the original error: %v", got)
			}
			for _, want := range tt.wantMsg {
				if !strings.Contains(got.Error(), want) {
					t.Errorf("enrichGraphAPIError() = %q, want containing %q", got, want)
				}
			}
		})
	}
}

func TestIsRetryableGraphError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "azure 429", err: fmt.Errorf("call failed: %w", &azcore.ResponseError{StatusCode: 429}), want: true},
		{name: "azure 401", err: &azcore.ResponseError{StatusCode: 401}, want: false},
		{name: "odata 503", err: newODataError(503, "ServiceUnavailable", ""), want: true},
		{name: "odata 404", err: newODataError(404, "Request_ResourceNotFound", ""), want: false},
		{name: "network timeout", err: errors.New("read tcp: i/o timeout"), want: true},
		{name: "cancelled", err: context.Canceled, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableGraphError(tt.err); got != tt.want {
				t.Errorf("isRetryableGraphError() = %t, want %t", got, tt.want)
			}
		})
	}
}

func TestGraphCall(t *testing.T) {
	config := NewConfig()
	config.MaxRetries = 2
	config.RetryDelay = time.Millisecond
	limiter := ratelimit.New(0)

	t.Run("retries throttled calls", func(t *testing.T) {
		calls := 0
		err := graphCall(context.Background(), config, limiter, discardLogger(), func() error {
			calls++
			if calls < 3 {
				return newODataError(429, "TooManyRequests", "")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("graphCall() error = %v", err)
		}
		if calls != 3 {
			t.Errorf("operation called %d times, want 3", calls)
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		err := graphCall(context.Background(), config, limiter, discardLogger(), func() error {
			calls++
			return newODataError(503, "ServiceUnavailable", "")
		})
		if err == nil {
			t.Fatal("graphCall() expected error, got nil")
		}
		if calls != config.MaxRetries+1 {
			t.Errorf("operation called %d times, want %d", calls, config.MaxRetries+1)
		}
	})

	t.Run("permanent error is not retried", func(t *testing.T) {
		calls := 0
		notFound := newODataError(404, "Request_ResourceNotFound", "")
		err := graphCall(context.Background(), config, limiter, discardLogger(), func() error {
			calls++
			return notFound
		})
		if !errors.Is(err, notFound) || calls != 1 {
			t.Errorf("graphCall() error = %v after %d calls", err, calls)
		}
	})
}

func TestYesNoAndIfEmpty(t *testing.T) {
	if yesNo(true) != "Yes" || yesNo(false) != "No" {
		t.Error("yesNo() mismatch")
	}
	if ifEmpty("", "N/A") != "N/A" || ifEmpty("x", "N/A") != "x" {
		t.Error("ifEmpty() mismatch")
	}
	if deref[string](nil) != "" || deref(pointerTo(7)) != 7 {
		t.Error("deref() mismatch")
	}
}
