package validation

import (
	"fmt"
	"net/url"
	"strings"

	apperrors "go-leaf-relay/internal/errors"
)

// URLValidator checks operator-supplied URLs (upstream base URL, CORS origins)
type URLValidator struct {
	allowedSchemes []string
	// originOnly rejects anything beyond scheme://host[:port]
	originOnly bool
}

// NewURLValidator creates a validator for upstream base URLs
func NewURLValidator() *URLValidator {
	return &URLValidator{
		allowedSchemes: []string{"http", "https"},
	}
}

// NewOriginValidator creates a validator for CORS origins
func NewOriginValidator() *URLValidator {
	return &URLValidator{
		allowedSchemes: []string{"http", "https"},
		originOnly:     true,
	}
}

// ValidateURL returns a configuration error when raw is not an acceptable URL
func (v *URLValidator) ValidateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return apperrors.NewConfigurationError("URL cannot be empty")
	}

	parsedURL, err := url.Parse(raw)
	if err != nil {
		return apperrors.NewConfigurationError(fmt.Sprintf("invalid URL %q", raw))
	}

	if !v.isSchemeAllowed(parsedURL.Scheme) {
		return apperrors.NewConfigurationError(fmt.Sprintf("URL scheme not allowed: %q", raw))
	}

	if parsedURL.Host == "" {
		return apperrors.NewConfigurationError(fmt.Sprintf("URL must have a valid host: %q", raw))
	}

	if v.originOnly && (strings.Trim(parsedURL.Path, "/") != "" || parsedURL.RawQuery != "" || parsedURL.Fragment != "") {
		return apperrors.NewConfigurationError(fmt.Sprintf("origin must not contain a path or query: %q", raw))
	}

	return nil
}

// ValidateOrigins checks a CORS origin list. A lone "*" allows every origin.
func (v *URLValidator) ValidateOrigins(origins []string) error {
	if len(origins) == 1 && origins[0] == "*" {
		return nil
	}
	for _, origin := range origins {
		if origin == "*" {
			return apperrors.NewConfigurationError(`"*" cannot be combined with explicit origins`)
		}
		if err := v.ValidateURL(origin); err != nil {
			return err
		}
	}
	return nil
}

func (v *URLValidator) isSchemeAllowed(scheme string) bool {
	for _, allowed := range v.allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}
