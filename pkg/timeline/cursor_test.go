package timeline

import (
	"encoding/base64"
	"testing"

	"flockd/pkg/serrors"
	"flockd/pkg/store"
)

func TestCursorRoundTrip(t *testing.T) {
	ref := store.Ref{PostID: "post-42", SortTS: 1234567890, Actor: "u1"}
	bound, err := DecodeCursor(EncodeCursor(ref))
	if err != nil {
		t.Fatalf("DecodeCursor failed: %v", err)
	}
	if bound.TS != 1234567890 || bound.ID != "post-42" || bound.Repost || bound.Actor != "u1" {
		t.Fatalf("round trip mismatch: %+v", bound)
	}
}

func TestCursorCarriesRepostIdentity(t *testing.T) {
	ref := store.Ref{PostID: "post-42", SortTS: 77, Actor: "u2", Repost: true}
	bound, err := DecodeCursor(EncodeCursor(ref))
	if err != nil {
		t.Fatalf("DecodeCursor failed: %v", err)
	}
	if !bound.Repost || bound.Actor != "u2" {
		t.Fatalf("repost identity lost in cursor: %+v", bound)
	}
}

func TestCursorEmptyMeansStart(t *testing.T) {
	bound, err := DecodeCursor("")
	if err != nil {
		t.Fatalf("empty cursor should be valid: %v", err)
	}
	if bound != nil {
		t.Fatalf("expected nil bound, got %+v", bound)
	}
}

func TestCursorRejectsGarbage(t *testing.T) {
	if _, err := DecodeCursor("not base64!!"); !serrors.IsValidation(err) {
		t.Fatalf("expected validation error for bad encoding, got %v", err)
	}
	bad := base64.StdEncoding.EncodeToString([]byte("not json"))
	if _, err := DecodeCursor(bad); !serrors.IsValidation(err) {
		t.Fatalf("expected validation error for bad payload, got %v", err)
	}
	empty := base64.StdEncoding.EncodeToString([]byte("{}"))
	if _, err := DecodeCursor(empty); !serrors.IsValidation(err) {
		t.Fatalf("expected validation error for empty payload, got %v", err)
	}
}
