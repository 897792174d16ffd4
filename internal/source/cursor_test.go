package source

import (
	"testing"
	"time"
)

func TestFeedCursorRoundTrip(t *testing.T) {
	orig := FeedCursor{LastSeen: time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC), ETag: `"v7"`}
	encoded := orig.Encode()
	if encoded == nil {
		t.Fatal("encode returned nil")
	}

	parsed, err := ParseFeedCursor(encoded)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !parsed.LastSeen.Equal(orig.LastSeen) || parsed.ETag != orig.ETag {
		t.Errorf("round trip lost data: %+v", parsed)
	}
}

func TestParseFeedCursorNil(t *testing.T) {
	parsed, err := ParseFeedCursor(nil)
	if err != nil {
		t.Fatalf("nil cursor should parse: %v", err)
	}
	if !parsed.LastSeen.IsZero() || parsed.ETag != "" {
		t.Errorf("nil cursor should be zero value: %+v", parsed)
	}
}

func TestParseOffsetCursor(t *testing.T) {
	encoded := OffsetCursor{Offset: 300}.Encode()
	parsed, err := ParseOffsetCursor(encoded)
	if err != nil || parsed.Offset != 300 {
		t.Errorf("round trip: %v %+v", err, parsed)
	}

	bad := `{"offset":-5}`
	if _, err := ParseOffsetCursor(&bad); err == nil {
		t.Error("negative offset should be rejected")
	}

	junk := "page=3"
	if _, err := ParseOffsetCursor(&junk); err == nil {
		t.Error("non-JSON cursor should be rejected")
	}
}

func TestParseSectorPageCursor(t *testing.T) {
	encoded := SectorPageCursor{SectorIndex: 2, Page: 14}.Encode()
	parsed, err := ParseSectorPageCursor(encoded, 5)
	if err != nil || parsed.SectorIndex != 2 || parsed.Page != 14 {
		t.Errorf("round trip: %v %+v", err, parsed)
	}

	// A sector list that shrank since the checkpoint was written.
	if _, err := ParseSectorPageCursor(encoded, 2); err == nil {
		t.Error("out-of-range sector index should be rejected")
	}

	bad := `{"sector_index":-1,"page":0}`
	if _, err := ParseSectorPageCursor(&bad, 5); err == nil {
		t.Error("negative sector index should be rejected")
	}
}
