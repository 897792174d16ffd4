package model

import "testing"

func TestNormalizeStage(t *testing.T) {
	cases := []struct {
		raw  string
		want Stage
	}{
		{"Seed", StageSeed},
		{"seed", StageSeed},
		{"Pre-Seed", StagePreSeed},
		{"angel", StagePreSeed},
		{"Series A", StageSeriesA},
		{"série a", StageSeriesA},
		{"Series B", StageSeriesB},
		{"Series E", StageGrowth},
		{"Venture Debt", StageDebt},
		{"", StageUnknown},
		{"IPO", StageUnknown},
	}
	for _, tc := range cases {
		if got := NormalizeStage(tc.raw); got != tc.want {
			t.Errorf("NormalizeStage(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestSourceTypePolled(t *testing.T) {
	if SourceTypeArchive.Polled() {
		t.Error("archive sources should not be polled after completion")
	}
	for _, typ := range []SourceType{SourceTypeRSS, SourceTypeAPI, SourceTypeScrape} {
		if !typ.Polled() {
			t.Errorf("%s sources should be polled forever", typ)
		}
	}
}
