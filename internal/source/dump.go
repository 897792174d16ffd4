package source

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/funding-cli/internal/fetcher"
	"github.com/sells-group/funding-cli/internal/model"
	"github.com/sells-group/funding-cli/internal/resilience"
)

// Dump connectors backfill one-off exports of legacy deal databases. A
// dump is a single file, so pagination is a row offset into the parsed
// rows; each fetch re-reads the file and slices out its window. That costs
// one extra download per batch and keeps fetch idempotent. Exports are
// newest-first, so the first row older than the cutoff ends the backfill.

// byteDownloader is the fetcher capability the XLSX dump needs.
type byteDownloader interface {
	DownloadBytes(ctx context.Context, url string) ([]byte, error)
}

// streamDownloader is the fetcher capability the FTP CSV dump needs.
type streamDownloader interface {
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// DumpConfig configures a dump connector.
type DumpConfig struct {
	Name        string
	DisplayName string
	URL         string
	BatchSize   int // rows per fetch, default 500
	MinDate     time.Time
	Tier        resilience.Tier
}

func (cfg *DumpConfig) applyDefaults() {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.Tier.Name == "" {
		cfg.Tier = resilience.TierSlow
	}
}

// XLSXDumpConnector reads a spreadsheet export served over HTTP. Expected
// columns, in order: company, amount, currency, stage, investors
// (semicolon-separated), lead investor, date, url, description.
type XLSXDumpConnector struct {
	cfg     DumpConfig
	fetcher byteDownloader
}

// NewXLSXDumpConnector builds a spreadsheet dump connector.
func NewXLSXDumpConnector(cfg DumpConfig, f byteDownloader) *XLSXDumpConnector {
	cfg.applyDefaults()
	return &XLSXDumpConnector{cfg: cfg, fetcher: f}
}

func (c *XLSXDumpConnector) Name() string           { return c.cfg.Name }
func (c *XLSXDumpConnector) DisplayName() string    { return c.cfg.DisplayName }
func (c *XLSXDumpConnector) Type() model.SourceType { return model.SourceTypeArchive }
func (c *XLSXDumpConnector) Tier() resilience.Tier  { return c.cfg.Tier }

// InitialCursor starts at the first data row.
func (c *XLSXDumpConnector) InitialCursor() *string {
	return OffsetCursor{}.Encode()
}

// Fetch reads one window of rows out of the dump.
func (c *XLSXDumpConnector) Fetch(ctx context.Context, cursor *string) (*Batch, error) {
	cur, err := ParseOffsetCursor(cursor)
	if err != nil {
		return nil, err
	}

	data, err := c.fetcher.DownloadBytes(ctx, c.cfg.URL)
	if err != nil {
		return nil, eris.Wrapf(err, "download dump %s", c.cfg.Name)
	}
	rows, err := fetcher.ReadXLSX(data, fetcher.XLSXOptions{SkipRows: 1})
	if err != nil {
		return nil, eris.Wrapf(err, "parse dump %s", c.cfg.Name)
	}

	return c.window(rows, cur), nil
}

func (c *XLSXDumpConnector) window(rows [][]string, cur OffsetCursor) *Batch {
	batch := &Batch{TotalEstimated: len(rows)}
	end := min(cur.Offset+c.cfg.BatchSize, len(rows))

	cutoffHit := false
	for i := cur.Offset; i < end; i++ {
		rec, err := c.rowToRecord(rows[i], i)
		if err != nil {
			batch.ItemErrors = append(batch.ItemErrors, err)
			continue
		}
		if rec.Date.Before(c.cfg.MinDate) {
			// Rows are newest-first: everything below is older still.
			cutoffHit = true
			break
		}
		batch.Items = append(batch.Items, *rec)
	}

	next := OffsetCursor{Offset: end}
	batch.NextCursor = next.Encode()
	batch.HasMore = !cutoffHit && end < len(rows)
	return batch
}

func (c *XLSXDumpConnector) rowToRecord(cells []string, rowIdx int) (*model.RawFundingRecord, error) {
	get := func(i int) string {
		if i < len(cells) {
			return strings.TrimSpace(cells[i])
		}
		return ""
	}
	return buildDumpRecord(c.cfg.Name, dumpRow{
		company:      get(0),
		amount:       get(1),
		currency:     get(2),
		stage:        get(3),
		investors:    get(4),
		leadInvestor: get(5),
		date:         get(6),
		url:          get(7),
		description:  get(8),
		ref:          c.cfg.Name + " row " + strconv.Itoa(rowIdx),
	})
}

// CSVFTPDumpConnector reads a CSV export served over FTP. Columns are
// matched by header name: company, amount, currency, stage, investors,
// lead_investor, date, url, description.
type CSVFTPDumpConnector struct {
	cfg     DumpConfig
	fetcher streamDownloader
}

// NewCSVFTPDumpConnector builds an FTP CSV dump connector.
func NewCSVFTPDumpConnector(cfg DumpConfig, f streamDownloader) *CSVFTPDumpConnector {
	cfg.applyDefaults()
	return &CSVFTPDumpConnector{cfg: cfg, fetcher: f}
}

func (c *CSVFTPDumpConnector) Name() string           { return c.cfg.Name }
func (c *CSVFTPDumpConnector) DisplayName() string    { return c.cfg.DisplayName }
func (c *CSVFTPDumpConnector) Type() model.SourceType { return model.SourceTypeArchive }
func (c *CSVFTPDumpConnector) Tier() resilience.Tier  { return c.cfg.Tier }

// InitialCursor starts at the first data row.
func (c *CSVFTPDumpConnector) InitialCursor() *string {
	return OffsetCursor{}.Encode()
}

// Fetch streams the file and keeps only the cursor's window of rows.
func (c *CSVFTPDumpConnector) Fetch(ctx context.Context, cursor *string) (*Batch, error) {
	cur, err := ParseOffsetCursor(cursor)
	if err != nil {
		return nil, err
	}

	body, err := c.fetcher.Download(ctx, c.cfg.URL)
	if err != nil {
		return nil, eris.Wrapf(err, "download dump %s", c.cfg.Name)
	}
	defer body.Close()

	rowCh, errCh := fetcher.StreamCSV(ctx, body, fetcher.CSVOptions{TrimSpace: true})

	batch := &Batch{}
	end := cur.Offset + c.cfg.BatchSize
	idx := 0
	cutoffHit := false
	for row := range rowCh {
		if !cutoffHit && idx >= cur.Offset && idx < end {
			rec, recErr := c.rowToRecord(row, idx)
			switch {
			case recErr != nil:
				batch.ItemErrors = append(batch.ItemErrors, recErr)
			case rec.Date.Before(c.cfg.MinDate):
				// Rows are newest-first: everything below is older still.
				cutoffHit = true
			default:
				batch.Items = append(batch.Items, *rec)
			}
		}
		idx++
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrapf(err, "stream dump %s", c.cfg.Name)
	}

	next := OffsetCursor{Offset: min(end, idx)}
	batch.NextCursor = next.Encode()
	batch.HasMore = !cutoffHit && end < idx
	batch.TotalEstimated = idx
	return batch, nil
}

func (c *CSVFTPDumpConnector) rowToRecord(row fetcher.CSVRow, rowIdx int) (*model.RawFundingRecord, error) {
	return buildDumpRecord(c.cfg.Name, dumpRow{
		company:      row.Get("company"),
		amount:       row.Get("amount"),
		currency:     row.Get("currency"),
		stage:        row.Get("stage"),
		investors:    row.Get("investors"),
		leadInvestor: row.Get("lead_investor"),
		date:         row.Get("date"),
		url:          row.Get("url"),
		description:  row.Get("description"),
		ref:          c.cfg.Name + " row " + strconv.Itoa(rowIdx),
	})
}

// dumpRow is the raw string view of one dump row before typing.
type dumpRow struct {
	company, amount, currency, stage string
	investors, leadInvestor          string
	date, url, description           string
	ref                              string
}

func buildDumpRecord(sourceName string, row dumpRow) (*model.RawFundingRecord, error) {
	if row.company == "" {
		return nil, &resilience.ParseError{Item: row.ref, Err: eris.New("row missing company name")}
	}
	date, err := parseDealDate(row.date)
	if err != nil {
		return nil, &resilience.ParseError{Item: row.ref, Err: err}
	}

	rec := &model.RawFundingRecord{
		CompanyName:  row.company,
		Currency:     strings.ToUpper(row.currency),
		Stage:        row.stage,
		LeadInvestor: row.leadInvestor,
		Date:         date,
		SourceURL:    row.url,
		SourceName:   sourceName,
		Description:  row.description,
	}
	if row.amount != "" {
		amount, err := strconv.ParseFloat(strings.ReplaceAll(row.amount, ",", ""), 64)
		if err != nil {
			return nil, &resilience.ParseError{Item: row.ref, Err: eris.Wrapf(err, "bad amount %q", row.amount)}
		}
		rec.Amount = &amount
	}
	for _, inv := range strings.Split(row.investors, ";") {
		if inv = strings.TrimSpace(inv); inv != "" {
			rec.Investors = append(rec.Investors, inv)
		}
	}
	return rec, nil
}
