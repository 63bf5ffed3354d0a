package task

import "strings"

// ValidateTitle rejects titles that are empty or only whitespace. A valid
// title is returned unchanged.
func ValidateTitle(title string) (string, error) {
	if strings.TrimSpace(title) == "" {
		return "", ErrInvalidTitle
	}
	return title, nil
}
