package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

// archiveServer serves /{sector}?page=N from a fixed page table.
func archiveServer(t *testing.T, pages map[string][][]apiDeal) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sector := strings.TrimPrefix(r.URL.Path, "/")
		pageNum, _ := strconv.Atoi(r.URL.Query().Get("page"))
		sectorPages := pages[sector]
		if pageNum >= len(sectorPages) {
			json.NewEncoder(w).Encode(apiPage{})
			return
		}
		json.NewEncoder(w).Encode(apiPage{Deals: sectorPages[pageNum]})
	}))
}

func TestArchiveFetchWalksSectors(t *testing.T) {
	srv := archiveServer(t, map[string][][]apiDeal{
		"fintech": {
			{dealJSON("Acme", "2025-06-02", "https://ar.test/1")},
		},
		"health": {
			{dealJSON("Zephyr", "2025-05-20", "https://ar.test/2")},
		},
	})
	defer srv.Close()

	conn := NewArchiveConnector(ArchiveConfig{
		Name:    "oldarchive",
		BaseURL: srv.URL,
		Sectors: []string{"fintech", "health"},
	}, testHTTP())

	// Page 0 of fintech.
	batch, err := conn.Fetch(context.Background(), conn.InitialCursor())
	if err != nil {
		t.Fatalf("fetch 1: %v", err)
	}
	if len(batch.Items) != 1 || batch.Items[0].CompanyName != "Acme" || !batch.HasMore {
		t.Fatalf("unexpected first batch: %+v", batch)
	}

	// Page 1 of fintech is empty: the cursor rolls to health page 0.
	batch, err = conn.Fetch(context.Background(), batch.NextCursor)
	if err != nil {
		t.Fatalf("fetch 2: %v", err)
	}
	if len(batch.Items) != 0 || !batch.HasMore {
		t.Fatalf("empty page should roll to next sector: %+v", batch)
	}
	cur, _ := ParseSectorPageCursor(batch.NextCursor, 2)
	if cur.SectorIndex != 1 || cur.Page != 0 {
		t.Fatalf("cursor should point at health page 0: %+v", cur)
	}

	batch, err = conn.Fetch(context.Background(), batch.NextCursor)
	if err != nil {
		t.Fatalf("fetch 3: %v", err)
	}
	if len(batch.Items) != 1 || batch.Items[0].CompanyName != "Zephyr" {
		t.Fatalf("unexpected health batch: %+v", batch)
	}

	// Health page 1 empty, no sectors left: backfill is done.
	batch, err = conn.Fetch(context.Background(), batch.NextCursor)
	if err != nil {
		t.Fatalf("fetch 4: %v", err)
	}
	if batch.HasMore {
		t.Error("exhausting the last sector must end the backfill")
	}
}

func TestArchiveFetchMinDateEndsBackfill(t *testing.T) {
	srv := archiveServer(t, map[string][][]apiDeal{
		"fintech": {
			{
				dealJSON("Acme", "2025-06-02", "https://ar.test/1"),
				dealJSON("Relic", "2012-01-15", "https://ar.test/2"),
				dealJSON("Older", "2011-01-15", "https://ar.test/3"),
			},
		},
	})
	defer srv.Close()

	conn := NewArchiveConnector(ArchiveConfig{
		Name:    "oldarchive",
		BaseURL: srv.URL,
		Sectors: []string{"fintech"},
		MinDate: time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC),
	}, testHTTP())

	batch, err := conn.Fetch(context.Background(), conn.InitialCursor())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if batch.HasMore {
		t.Error("hitting the cutoff must end the backfill")
	}
	// Pages run newest-first: everything after the first stale item is
	// older and never inspected.
	if len(batch.Items) != 1 || batch.Items[0].CompanyName != "Acme" {
		t.Errorf("only pre-cutoff items survive: %+v", batch.Items)
	}
}

func TestArchiveFetchNoSectors(t *testing.T) {
	conn := NewArchiveConnector(ArchiveConfig{Name: "bad", BaseURL: "http://unused.test"}, testHTTP())
	if _, err := conn.Fetch(context.Background(), nil); err == nil {
		t.Error("missing sector list should fail")
	}
}
