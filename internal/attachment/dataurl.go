package attachment

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
)

var dataURLRegex = regexp.MustCompile(`^data:(image/[a-zA-Z0-9.+-]+);base64,(.+)$`)

// ParseDataURL decodes a base64 image data URL into its MIME type and bytes.
func ParseDataURL(s string) (string, []byte, error) {
	matches := dataURLRegex.FindStringSubmatch(s)
	if matches == nil {
		return "", nil, fmt.Errorf("%w: expected data:image/<type>;base64,<payload>", ErrInvalidAttachment)
	}

	payload := strings.TrimSpace(matches[2])
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some encoders omit padding.
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return "", nil, fmt.Errorf("%w: invalid base64 payload", ErrInvalidAttachment)
		}
	}

	return strings.ToLower(matches[1]), data, nil
}
