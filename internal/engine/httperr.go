package engine

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cngjsskaisme/folio/internal/config"
)

// responseError converts a non-200 provider response into an error.
// Rejected credentials become *config.ConfigurationError so callers stop
// retrying; 429 becomes a rateLimitError.
func responseError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	msg := strings.TrimSpace(string(body))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &rateLimitError{status: resp.StatusCode}
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusBadRequest && strings.Contains(msg, "API_KEY_INVALID"):
		return &config.ConfigurationError{
			Key:    provider + ".api_key",
			Reason: fmt.Sprintf("credentials rejected (HTTP %d)", resp.StatusCode),
		}
	}
	return fmt.Errorf("%s: unexpected status %d: %s", provider, resp.StatusCode, msg)
}
