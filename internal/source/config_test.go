package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sells-group/funding-cli/internal/fetcher"
	"github.com/sells-group/funding-cli/internal/model"
)

const sampleSourcesYAML = `
sources:
  - name: techblog
    display_name: Tech Blog
    format: rss
    url: https://news.example.com/feed.xml
    tier: fast
    min_date: "2019-01-01"
  - name: dealapi
    display_name: Deal API
    format: api
    url: https://api.example.com/deals
    tier: internal
    page_size: 50
  - name: oldarchive
    display_name: Old Archive
    format: archive
    url: https://archive.example.com
    tier: slow
    sectors: [fintech, health]
  - name: legacydump
    display_name: Legacy Dump
    format: csv-ftp-dump
    url: ftp://archive.example.com/dump.csv
    batch_size: 250
`

func writeSources(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write sources: %v", err)
	}
	return path
}

func testDeps() Deps {
	return Deps{
		HTTP:      fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}),
		FTP:       fetcher.NewFTPFetcher(fetcher.FTPOptions{}),
		Extractor: &fakeExtractor{},
	}
}

func TestLoadRegistry(t *testing.T) {
	reg, err := LoadRegistry(writeSources(t, sampleSourcesYAML), testDeps())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if got := len(reg.List()); got != 4 {
		t.Fatalf("expected 4 connectors, got %d", got)
	}

	feed := reg.Get("techblog")
	if feed == nil || feed.Type() != model.SourceTypeRSS || feed.Tier().Name != "fast" {
		t.Errorf("techblog misconfigured: %+v", feed)
	}

	api := reg.Get("dealapi")
	if api == nil || api.Type() != model.SourceTypeAPI || api.Tier().Name != "internal" {
		t.Errorf("dealapi misconfigured: %+v", api)
	}

	archive := reg.Get("oldarchive")
	if archive == nil || archive.Type() != model.SourceTypeArchive || archive.Tier().Name != "slow" {
		t.Errorf("oldarchive misconfigured: %+v", archive)
	}

	dump := reg.Get("legacydump")
	if dump == nil || dump.Type() != model.SourceTypeArchive {
		t.Errorf("legacydump misconfigured: %+v", dump)
	}
}

func TestLoadRegistryRejectsBadEntries(t *testing.T) {
	cases := map[string]string{
		"unknown format": `
sources:
  - name: x
    format: carrier-pigeon
    url: https://x.test
`,
		"missing url": `
sources:
  - name: x
    format: rss
`,
		"bad min_date": `
sources:
  - name: x
    format: rss
    url: https://x.test
    min_date: "June 2019"
`,
		"empty file": `sources: []`,
	}

	for name, content := range cases {
		if _, err := LoadRegistry(writeSources(t, content), testDeps()); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
