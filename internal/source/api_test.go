package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/sells-group/funding-cli/internal/fetcher"
	"github.com/sells-group/funding-cli/internal/resilience"
)

func testHTTP() *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{HostRate: 1000, HostBurst: 1000})
}

func dealJSON(company, date, url string) apiDeal {
	return apiDeal{Company: company, Date: date, URL: url, Currency: "USD"}
}

func TestAPIFetchPaginates(t *testing.T) {
	all := []apiDeal{
		dealJSON("Acme", "2025-06-02", "https://a.test/1"),
		dealJSON("Zephyr", "2025-06-01", "https://a.test/2"),
		dealJSON("Nimbus", "2025-05-30", "https://a.test/3"),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		end := min(offset+limit, len(all))
		json.NewEncoder(w).Encode(apiPage{Deals: all[offset:end], Total: len(all)})
	}))
	defer srv.Close()

	conn := NewAPIConnector(APIConfig{Name: "dealapi", BaseURL: srv.URL, PageSize: 2}, testHTTP())

	batch, err := conn.Fetch(context.Background(), conn.InitialCursor())
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if len(batch.Items) != 2 || !batch.HasMore {
		t.Fatalf("first page: items=%d hasMore=%v", len(batch.Items), batch.HasMore)
	}
	if batch.TotalEstimated != 3 {
		t.Errorf("total estimate lost: %d", batch.TotalEstimated)
	}

	batch, err = conn.Fetch(context.Background(), batch.NextCursor)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if len(batch.Items) != 1 || batch.HasMore {
		t.Errorf("second page: items=%d hasMore=%v", len(batch.Items), batch.HasMore)
	}
}

func TestAPIFetchIdempotentCursor(t *testing.T) {
	all := []apiDeal{
		dealJSON("Acme", "2025-06-02", "https://a.test/1"),
		dealJSON("Zephyr", "2025-06-01", "https://a.test/2"),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		end := min(offset+limit, len(all))
		json.NewEncoder(w).Encode(apiPage{Deals: all[offset:end], Total: len(all)})
	}))
	defer srv.Close()

	conn := NewAPIConnector(APIConfig{Name: "dealapi", BaseURL: srv.URL, PageSize: 1}, testHTTP())
	cursor := conn.InitialCursor()

	first, err := conn.Fetch(context.Background(), cursor)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	replay, err := conn.Fetch(context.Background(), cursor)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(first.Items) != len(replay.Items) || first.Items[0].SourceURL != replay.Items[0].SourceURL {
		t.Error("same cursor must return the same items")
	}
	if *first.NextCursor != *replay.NextCursor {
		t.Error("same cursor must produce the same next cursor")
	}
}

func TestAPIFetchMinDateCutoff(t *testing.T) {
	// Second item predates the cutoff: the response must end the backfill
	// even though the API reports more pages.
	all := []apiDeal{
		dealJSON("Acme", "2025-06-02", "https://a.test/1"),
		dealJSON("Relic", "2014-03-10", "https://a.test/2"),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiPage{Deals: all, Total: 500})
	}))
	defer srv.Close()

	conn := NewAPIConnector(APIConfig{
		Name:     "dealapi",
		BaseURL:  srv.URL,
		PageSize: 2,
		MinDate:  time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC),
	}, testHTTP())

	batch, err := conn.Fetch(context.Background(), conn.InitialCursor())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if batch.HasMore {
		t.Error("an item before min date must end pagination")
	}
	if len(batch.Items) != 1 {
		t.Errorf("the pre-cutoff item itself is dropped: %+v", batch.Items)
	}
}

func TestAPIFetchBadItems(t *testing.T) {
	all := []apiDeal{
		{Company: "", Date: "2025-06-02", URL: "https://a.test/1"},
		{Company: "Acme", Date: "junk", URL: "https://a.test/2"},
		dealJSON("Zephyr", "2025-06-01", "https://a.test/3"),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiPage{Deals: all, Total: 3})
	}))
	defer srv.Close()

	conn := NewAPIConnector(APIConfig{Name: "dealapi", BaseURL: srv.URL, PageSize: 10}, testHTTP())
	batch, err := conn.Fetch(context.Background(), conn.InitialCursor())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(batch.Items) != 1 || batch.Items[0].CompanyName != "Zephyr" {
		t.Errorf("only the valid deal should survive: %+v", batch.Items)
	}
	if len(batch.ItemErrors) != 2 {
		t.Fatalf("expected 2 item errors, got %d", len(batch.ItemErrors))
	}
	for _, err := range batch.ItemErrors {
		if !resilience.IsParseError(err) {
			t.Errorf("item errors should be ParseErrors: %v", err)
		}
	}
}

func TestAPIFetchMalformedCursor(t *testing.T) {
	conn := NewAPIConnector(APIConfig{Name: "dealapi", BaseURL: "http://unused.test"}, testHTTP())
	bad := "3:extra"
	if _, err := conn.Fetch(context.Background(), &bad); err == nil {
		t.Error("malformed cursor should fail before any network call")
	}
}
