package chat

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hay-kot/criterio"
)

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]{1,31}$`)

// Username validates an account username.
func Username(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("must be 2-32 characters of letters, digits, '.', '_' or '-'")
	}
	return nil
}

// RoomName validates a room name. Names that are entirely digits are
// rejected so they never collide with room ids in a RoomRef.
func RoomName(s string) error {
	if err := Username(s); err != nil {
		return err
	}
	if ParseRoomRef(s).ID > 0 {
		return fmt.Errorf("cannot be numeric")
	}
	return nil
}

// Password validates a new account password.
func Password(s string) error {
	if len(s) < 6 {
		return fmt.Errorf("must be at least 6 characters")
	}
	if len(s) > 72 {
		return fmt.Errorf("must be at most 72 bytes")
	}
	return nil
}

// Content returns a validator for message content capped at maxSize bytes.
func Content(maxSize int) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("is required")
		}
		if maxSize > 0 && len(s) > maxSize {
			return fmt.Errorf("exceeds %d bytes", maxSize)
		}
		return nil
	}
}

// Invalid wraps a validation error so callers can match ErrInvalidInput
// while still extracting criterio field errors.
func Invalid(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}

// ValidateRegistration checks the fields of a new account.
func ValidateRegistration(username, name, password string) error {
	return Invalid(criterio.ValidateStruct(
		criterio.Run("username", username, Username),
		criterio.Run("name", name, func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("is required")
			}
			return nil
		}),
		criterio.Run("password", password, Password),
	))
}
