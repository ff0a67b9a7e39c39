package models

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/forPelevin/gomoji"

	"chat/infrastructure"
)

const (
	MinUsernameLength    = 2
	MaxUsernameLength    = 50
	MinDisplayNameLength = 1
	MaxDisplayNameLength = 100
	MinPasswordLength    = 6
)

func ValidateEmail(email string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return infrastructure.Validation("invalid email address %q", email)
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return infrastructure.Validation("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

func ValidateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < MinUsernameLength || n > MaxUsernameLength {
		return infrastructure.Validation("username must be between %d and %d characters", MinUsernameLength, MaxUsernameLength)
	}
	return nil
}

func ValidateDisplayName(displayName string) error {
	n := utf8.RuneCountInString(displayName)
	if n < MinDisplayNameLength || n > MaxDisplayNameLength {
		return infrastructure.Validation("display name must be between %d and %d characters", MinDisplayNameLength, MaxDisplayNameLength)
	}
	return nil
}

func ValidateStatus(status Status) error {
	switch status {
	case StatusOnline, StatusOffline, StatusAway:
		return nil
	}
	return infrastructure.Validation("unknown status %q", status)
}

// ValidateEmoji accepts exactly one emoji, including multi-rune sequences
// such as flags or skin tone variants.
func ValidateEmoji(emoji string) error {
	if strings.TrimSpace(emoji) != emoji || emoji == "" {
		return infrastructure.Validation("reaction must be a single emoji")
	}
	found := gomoji.CollectAll(emoji)
	if len(found) != 1 || found[0].Character != emoji {
		return infrastructure.Validation("reaction must be a single emoji")
	}
	return nil
}

func ValidateMessageText(text string) error {
	if strings.TrimSpace(text) == "" {
		return infrastructure.Validation("message text is empty")
	}
	return nil
}

// DeriveUsername builds a valid username from the local part of an email
// address. Short names are padded with underscores and long ones cut.
func DeriveUsername(email string) string {
	name := strings.TrimSpace(strings.SplitN(email, "@", 2)[0])
	if name == "" {
		name = "user"
	}
	for utf8.RuneCountInString(name) < MinUsernameLength {
		name += "_"
	}
	return truncateRunes(name, MaxUsernameLength)
}

// DeriveDisplayName returns name cut to the display name limit, or fallback
// when name is blank.
func DeriveDisplayName(name, fallback string) string {
	if strings.TrimSpace(name) == "" {
		name = fallback
	}
	return truncateRunes(name, MaxDisplayNameLength)
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

// ValidateUser checks every field constraint of a user record.
func ValidateUser(u *User) error {
	if u.ID == "" {
		return infrastructure.Validation("user id is empty")
	}
	if err := ValidateEmail(u.Email); err != nil {
		return err
	}
	if err := ValidateUsername(u.Username); err != nil {
		return err
	}
	if err := ValidateDisplayName(u.DisplayName); err != nil {
		return err
	}
	return ValidateStatus(u.Status)
}
