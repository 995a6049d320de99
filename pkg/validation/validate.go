package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"flockd/pkg/models"
	"flockd/pkg/serrors"
)

const (
	// MaxContentRunes bounds post, comment and message bodies. Measured in
	// code points, not bytes.
	MaxContentRunes = 256
)

// ValidateContent checks the 1..256 code point constraint on user text.
func ValidateContent(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: content is required", serrors.ErrValidation)
	}
	if n := utf8.RuneCountInString(s); n > MaxContentRunes {
		return fmt.Errorf("%w: content exceeds %d code points (%d)", serrors.ErrValidation, MaxContentRunes, n)
	}
	return nil
}

// ValidatePrivacy checks the privacy enum. Empty defaults to public at the
// handler layer, so empty is rejected here.
func ValidatePrivacy(p models.Privacy) error {
	switch p {
	case models.PrivacyPublic, models.PrivacyFollowers, models.PrivacyPrivate:
		return nil
	}
	return fmt.Errorf("%w: unknown privacy %q", serrors.ErrValidation, p)
}

// ValidatePost checks constraints on a post create/update.
func ValidatePost(p models.Post) error {
	if p.Author == "" {
		return fmt.Errorf("%w: author is required", serrors.ErrValidation)
	}
	if err := ValidateContent(p.Content); err != nil {
		return err
	}
	return ValidatePrivacy(p.Privacy)
}

// ValidateComment checks constraints on a comment create/update.
func ValidateComment(c models.Comment) error {
	if c.Post == "" {
		return fmt.Errorf("%w: post is required", serrors.ErrValidation)
	}
	if c.Author == "" {
		return fmt.Errorf("%w: author is required", serrors.ErrValidation)
	}
	return ValidateContent(c.Content)
}

// ValidateMessage checks constraints on a conversation message.
func ValidateMessage(m models.Message) error {
	if m.Conv == "" {
		return fmt.Errorf("%w: conv is required", serrors.ErrValidation)
	}
	if m.Author == "" {
		return fmt.Errorf("%w: author is required", serrors.ErrValidation)
	}
	return ValidateContent(m.Body)
}
