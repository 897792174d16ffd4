package source

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/funding-cli/internal/extract"
	"github.com/sells-group/funding-cli/internal/fetcher"
	"github.com/sells-group/funding-cli/internal/resilience"
)

// sourcesFile is the YAML layout of the sources configuration file.
type sourcesFile struct {
	Sources []sourceEntry `yaml:"sources"`
}

type sourceEntry struct {
	Name        string   `yaml:"name"`
	DisplayName string   `yaml:"display_name"`
	Format      string   `yaml:"format"` // rss, api, archive, xlsx-dump, csv-ftp-dump
	URL         string   `yaml:"url"`
	Tier        string   `yaml:"tier"`
	MinDate     string   `yaml:"min_date"` // YYYY-MM-DD
	Sectors     []string `yaml:"sectors"`
	PageSize    int      `yaml:"page_size"`
	BatchSize   int      `yaml:"batch_size"`
}

// Deps are the collaborators connectors are built around.
type Deps struct {
	HTTP          *fetcher.HTTPFetcher
	FTP           *fetcher.FTPFetcher
	Extractor     extract.Extractor
	MinConfidence int
}

// LoadRegistry reads the sources file and registers one connector per
// entry.
func LoadRegistry(path string, deps Deps) (*Registry, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read sources file %s", path)
	}

	var file sourcesFile
	if err := yaml.Unmarshal(bs, &file); err != nil {
		return nil, eris.Wrapf(err, "parse sources file %s", path)
	}
	if len(file.Sources) == 0 {
		return nil, eris.Errorf("sources file %s defines no sources", path)
	}

	reg := NewRegistry()
	for _, entry := range file.Sources {
		conn, err := buildConnector(entry, deps)
		if err != nil {
			return nil, err
		}
		reg.Register(conn)
		zap.L().Debug("registered source",
			zap.String("source", conn.Name()),
			zap.String("type", string(conn.Type())),
			zap.String("tier", conn.Tier().Name),
		)
	}
	return reg, nil
}

func buildConnector(entry sourceEntry, deps Deps) (Connector, error) {
	if entry.Name == "" || entry.URL == "" {
		return nil, eris.Errorf("source entry %q missing name or url", entry.Name)
	}
	minDate, err := parseMinDate(entry.MinDate)
	if err != nil {
		return nil, eris.Wrapf(err, "source %s", entry.Name)
	}
	tier := resilience.TierByName(entry.Tier)

	switch entry.Format {
	case "rss":
		return NewRSSConnector(RSSConfig{
			Name:          entry.Name,
			DisplayName:   entry.DisplayName,
			FeedURL:       entry.URL,
			MinDate:       minDate,
			MinConfidence: deps.MinConfidence,
			Tier:          tier,
		}, deps.HTTP, deps.Extractor), nil
	case "api":
		return NewAPIConnector(APIConfig{
			Name:        entry.Name,
			DisplayName: entry.DisplayName,
			BaseURL:     entry.URL,
			PageSize:    entry.PageSize,
			MinDate:     minDate,
			Tier:        tier,
		}, deps.HTTP), nil
	case "archive":
		return NewArchiveConnector(ArchiveConfig{
			Name:        entry.Name,
			DisplayName: entry.DisplayName,
			BaseURL:     entry.URL,
			Sectors:     entry.Sectors,
			MinDate:     minDate,
			Tier:        tier,
		}, deps.HTTP), nil
	case "xlsx-dump":
		return NewXLSXDumpConnector(DumpConfig{
			Name:        entry.Name,
			DisplayName: entry.DisplayName,
			URL:         entry.URL,
			BatchSize:   entry.BatchSize,
			MinDate:     minDate,
			Tier:        tier,
		}, deps.HTTP), nil
	case "csv-ftp-dump":
		return NewCSVFTPDumpConnector(DumpConfig{
			Name:        entry.Name,
			DisplayName: entry.DisplayName,
			URL:         entry.URL,
			BatchSize:   entry.BatchSize,
			MinDate:     minDate,
			Tier:        tier,
		}, deps.FTP), nil
	default:
		return nil, eris.Errorf("source %s has unknown format %q", entry.Name, entry.Format)
	}
}

func parseMinDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "bad min_date %q", raw)
	}
	return t, nil
}
