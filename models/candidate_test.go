package models

import (
	"testing"
	"time"

	"goodturn-api/utils"
)

var austin = Coordinates{Latitude: 30.2672, Longitude: -97.7431}

func TestNormalizeCandidateFallsBackToSearchCenter(t *testing.T) {
	now := time.Now()
	event, err := NormalizeCandidate(RawCandidateEvent{
		Title:  "Park cleanup",
		Source: "volunteerboard",
	}, austin, now, time.Hour)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	if event.Latitude != austin.Latitude || event.Longitude != austin.Longitude {
		t.Errorf("expected search-center coordinates, got (%f, %f)", event.Latitude, event.Longitude)
	}
	if event.GeohashCoarse != utils.EncodeCoarse(austin.Latitude, austin.Longitude) {
		t.Errorf("coarse geohash not computed from coordinates: %q", event.GeohashCoarse)
	}
	if event.GeohashFine != utils.EncodeFine(austin.Latitude, austin.Longitude) {
		t.Errorf("fine geohash not computed from coordinates: %q", event.GeohashFine)
	}
	if event.ID == "" {
		t.Error("expected a generated id")
	}
	if event.CacheExpiresAt == nil || !event.CacheExpiresAt.After(now) {
		t.Error("expected a future cache expiry")
	}
}

func TestNormalizeCandidatePrefersOwnCoordinates(t *testing.T) {
	lat, lon := 30.1975, -97.6664
	event, err := NormalizeCandidate(RawCandidateEvent{
		Title:     "Airport food drive",
		Latitude:  &lat,
		Longitude: &lon,
	}, austin, time.Now(), time.Hour)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	if event.Latitude != lat || event.Longitude != lon {
		t.Errorf("expected candidate's own coordinates, got (%f, %f)", event.Latitude, event.Longitude)
	}
	if event.GeohashCoarse != utils.EncodeCoarse(lat, lon) {
		t.Errorf("geohash must follow the candidate's coordinates")
	}
}

func TestNormalizeCandidateRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		raw  RawCandidateEvent
	}{
		{"missing title", RawCandidateEvent{DateStart: "2026-09-01"}},
		{"blank title", RawCandidateEvent{Title: "   "}},
		{"unparsable date", RawCandidateEvent{Title: "Gala", DateStart: "next Tuesday-ish"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NormalizeCandidate(tc.raw, austin, time.Now(), time.Hour); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestNormalizeCandidateImages(t *testing.T) {
	event, err := NormalizeCandidate(RawCandidateEvent{
		Title:     "Mural painting",
		ImageURLs: []string{"https://img.example.com/a.jpg", "", "https://img.example.com/b.jpg"},
	}, austin, time.Now(), time.Hour)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	if len(event.Images) != 2 {
		t.Fatalf("expected 2 images (blank skipped), got %d", len(event.Images))
	}
	for i, img := range event.Images {
		if img.Position != i {
			t.Errorf("image %d has position %d", i, img.Position)
		}
	}
	if event.Thumbnail != "https://img.example.com/a.jpg" {
		t.Errorf("thumbnail should mirror image[0], got %q", event.Thumbnail)
	}
}

func TestParseCandidateDate(t *testing.T) {
	cases := []struct {
		input   string
		wantNil bool
		wantErr bool
	}{
		{"", true, false},
		{"2026-09-01T18:00:00Z", false, false},
		{"2026-09-01 18:00", false, false},
		{"2026-09-01", false, false},
		{"09/01/2026", false, false},
		{"whenever", false, true},
	}

	for _, tc := range cases {
		got, err := ParseCandidateDate(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Errorf("%q: expected error", tc.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error: %v", tc.input, err)
			continue
		}
		if tc.wantNil != (got == nil) {
			t.Errorf("%q: nil = %v, want %v", tc.input, got == nil, tc.wantNil)
		}
	}
}

func TestEventFreshAt(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	cases := []struct {
		name      string
		expiresAt *time.Time
		want      bool
	}{
		{"null expiry never expires", nil, true},
		{"future expiry is fresh", &future, true},
		{"past expiry is stale", &past, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := Event{CacheExpiresAt: tc.expiresAt}
			if got := e.FreshAt(now); got != tc.want {
				t.Errorf("FreshAt = %v, want %v", got, tc.want)
			}
		})
	}
}
