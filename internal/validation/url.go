// Package validation checks values that cross a process boundary, such as
// the launch URL handed to the platform browser opener.
package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// urlMetaChars are shell metacharacters that must never reach the browser
// opener's argument list.
var urlMetaChars = []string{";", "&", "|", "`", "$", "(", ")", "<", ">", "\"", "'", "\\", "\n", "\r", " "}

// ValidateURL accepts only plain http and https URLs that are safe to pass
// to an external command. The server builds its own launch URL from
// validated host and port configuration, so anything rejected here points
// at a configuration problem rather than user input.
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (only http/https allowed)", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must have a hostname")
	}

	for _, char := range urlMetaChars {
		if strings.Contains(rawURL, char) {
			return fmt.Errorf("URL contains unsafe character %q", char)
		}
	}

	return nil
}
