package validation

import (
	"strings"
	"testing"

	"flockd/pkg/models"
	"flockd/pkg/serrors"
)

func TestValidateContentBounds(t *testing.T) {
	if err := ValidateContent("hello"); err != nil {
		t.Fatalf("plain content rejected: %v", err)
	}
	if err := ValidateContent(""); !serrors.IsValidation(err) {
		t.Fatalf("empty content accepted: %v", err)
	}
	if err := ValidateContent("   "); !serrors.IsValidation(err) {
		t.Fatalf("whitespace content accepted: %v", err)
	}
	// the limit counts code points, not bytes
	if err := ValidateContent(strings.Repeat("ä", MaxContentRunes)); err != nil {
		t.Fatalf("content at the limit rejected: %v", err)
	}
	if err := ValidateContent(strings.Repeat("ä", MaxContentRunes+1)); !serrors.IsValidation(err) {
		t.Fatalf("content over the limit accepted: %v", err)
	}
}

func TestValidatePrivacy(t *testing.T) {
	for _, p := range []models.Privacy{models.PrivacyPublic, models.PrivacyFollowers, models.PrivacyPrivate} {
		if err := ValidatePrivacy(p); err != nil {
			t.Fatalf("privacy %q rejected: %v", p, err)
		}
	}
	if err := ValidatePrivacy("friends"); !serrors.IsValidation(err) {
		t.Fatalf("unknown privacy accepted: %v", err)
	}
	if err := ValidatePrivacy(""); !serrors.IsValidation(err) {
		t.Fatalf("empty privacy accepted: %v", err)
	}
}

func TestValidatePost(t *testing.T) {
	ok := models.Post{Author: "u1", Content: "hi", Privacy: models.PrivacyPublic}
	if err := ValidatePost(ok); err != nil {
		t.Fatalf("valid post rejected: %v", err)
	}
	bad := ok
	bad.Author = ""
	if err := ValidatePost(bad); !serrors.IsValidation(err) {
		t.Fatalf("post without author accepted: %v", err)
	}
	bad = ok
	bad.Content = ""
	if err := ValidatePost(bad); !serrors.IsValidation(err) {
		t.Fatalf("post without content accepted: %v", err)
	}
}

func TestValidateCommentAndMessage(t *testing.T) {
	if err := ValidateComment(models.Comment{Post: "p1", Author: "u1", Content: "hi"}); err != nil {
		t.Fatalf("valid comment rejected: %v", err)
	}
	if err := ValidateComment(models.Comment{Author: "u1", Content: "hi"}); !serrors.IsValidation(err) {
		t.Fatalf("comment without post accepted: %v", err)
	}
	if err := ValidateMessage(models.Message{Conv: "c1", Author: "u1", Body: "hi"}); err != nil {
		t.Fatalf("valid message rejected: %v", err)
	}
	if err := ValidateMessage(models.Message{Conv: "c1", Body: "hi"}); !serrors.IsValidation(err) {
		t.Fatalf("message without author accepted: %v", err)
	}
}
