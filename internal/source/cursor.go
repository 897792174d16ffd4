package source

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// Cursors are JSON documents rather than delimited strings, so a malformed
// or stale checkpoint fails loudly at decode time instead of producing a
// garbage page number.

// FeedCursor checkpoints a polled feed: the newest item already ingested
// and the feed's last ETag for conditional fetches.
type FeedCursor struct {
	LastSeen time.Time `json:"last_seen"`
	ETag     string    `json:"etag,omitempty"`
}

// OffsetCursor checkpoints an offset-paginated API or row-oriented dump.
type OffsetCursor struct {
	Offset int `json:"offset"`
}

// SectorPageCursor checkpoints an archive organized as numbered pages
// within an ordered sector list.
type SectorPageCursor struct {
	SectorIndex int `json:"sector_index"`
	Page        int `json:"page"`
}

func encodeCursor(v any) *string {
	bs, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	s := string(bs)
	return &s
}

func decodeCursor(cursor *string, out any) error {
	if cursor == nil || *cursor == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(*cursor), out); err != nil {
		return eris.Wrapf(err, "malformed cursor %q", *cursor)
	}
	return nil
}

// ParseFeedCursor decodes a feed checkpoint. A nil cursor yields the zero
// value (fetch everything newer than the connector's cutoff).
func ParseFeedCursor(cursor *string) (FeedCursor, error) {
	var c FeedCursor
	err := decodeCursor(cursor, &c)
	return c, err
}

// ParseOffsetCursor decodes an offset checkpoint, rejecting negatives.
func ParseOffsetCursor(cursor *string) (OffsetCursor, error) {
	var c OffsetCursor
	if err := decodeCursor(cursor, &c); err != nil {
		return c, err
	}
	if c.Offset < 0 {
		return OffsetCursor{}, eris.Errorf("negative offset %d in cursor", c.Offset)
	}
	return c, nil
}

// ParseSectorPageCursor decodes a sector/page checkpoint. sectorCount
// bounds the sector index against the connector's current configuration.
func ParseSectorPageCursor(cursor *string, sectorCount int) (SectorPageCursor, error) {
	var c SectorPageCursor
	if err := decodeCursor(cursor, &c); err != nil {
		return c, err
	}
	if c.SectorIndex < 0 || c.Page < 0 {
		return SectorPageCursor{}, eris.Errorf("negative field in cursor %+v", c)
	}
	if c.SectorIndex >= sectorCount {
		return SectorPageCursor{}, eris.Errorf("sector index %d out of range (%d sectors)", c.SectorIndex, sectorCount)
	}
	return c, nil
}

// Encode serializes the cursor for checkpoint storage.
func (c FeedCursor) Encode() *string { return encodeCursor(c) }

// Encode serializes the cursor for checkpoint storage.
func (c OffsetCursor) Encode() *string { return encodeCursor(c) }

// Encode serializes the cursor for checkpoint storage.
func (c SectorPageCursor) Encode() *string { return encodeCursor(c) }
