package tempmail

// maxMessageIDLength bounds remote message identifiers; Mail.tm IDs are
// 24-character hex strings, so anything past this is garbage input.
const maxMessageIDLength = 128

// isValidOwnerID checks if an owner ID is valid.
// Valid owner IDs are non-empty and contain only safe characters.
// This prevents cache key injection and other security issues.
func isValidOwnerID(ownerID string) bool {
	if ownerID == "" {
		return false
	}
	// Allow alphanumeric, hyphen, underscore, period, at-sign
	// Disallow: *, :, /, \, spaces, and control characters
	for _, c := range ownerID {
		if c == '*' || c == ':' || c == '/' || c == '\\' ||
			c == ' ' || c == '\t' || c == '\n' || c == '\r' ||
			c < 32 || c == 127 {
			return false
		}
	}
	return true
}

// validateMessageID rejects identifiers that must never reach the
// remote service: empty strings, the reserved "all" keyword (delete-all
// has its own operation), overlong values, and path-breaking characters.
func validateMessageID(messageID string) error {
	if messageID == "" || messageID == "all" {
		return ErrInvalidMessageID
	}
	if len(messageID) > maxMessageIDLength {
		return ErrInvalidMessageID
	}
	for _, c := range messageID {
		if c == '/' || c == '\\' || c == '?' || c == '#' ||
			c == ' ' || c < 32 || c == 127 {
			return ErrInvalidMessageID
		}
	}
	return nil
}
