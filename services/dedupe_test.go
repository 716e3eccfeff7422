package services

import (
	"testing"

	"rental-parser/models"
)

func TestDedupeKeepsFirstSeen(t *testing.T) {
	raw := []*models.RawListing{
		{Source: models.SourceAvito, ExternalID: "1", Title: "first"},
		{Source: models.SourceAvito, ExternalID: "2", Title: "other"},
		{Source: models.SourceAvito, ExternalID: "1", Title: "second"},
	}

	out := Dedupe(raw)
	if len(out) != 2 {
		t.Fatalf("expected 2 records after deduplication, got %d", len(out))
	}
	if out[0].Title != "first" || out[1].ExternalID != "2" {
		t.Errorf("unexpected order or winner: %q, %q", out[0].Title, out[1].ExternalID)
	}
}

func TestDedupeKeysIncludeSource(t *testing.T) {
	raw := []*models.RawListing{
		{Source: models.SourceAvito, ExternalID: "1"},
		{Source: models.SourceCian, ExternalID: "1"},
	}

	if out := Dedupe(raw); len(out) != 2 {
		t.Errorf("same id on different sources must both survive, got %d", len(out))
	}
}

func TestDedupeEmpty(t *testing.T) {
	if out := Dedupe(nil); len(out) != 0 {
		t.Errorf("expected empty output, got %d", len(out))
	}
}
