package dedup

import "testing"

func TestSlugify(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"Acme SAS", "acme"},
		{"Acme, Inc.", "acme"},
		{"Acmé Robotics SARL", "acme-robotics"},
		{"Müller GmbH", "muller"},
		{"Foo Bar Ltd", "foo-bar"},
		{"  Spaced   Out  Co ", "spaced-out"},
		{"Data/Viz (2020) PLC", "data-viz-2020"},
		{"SAS", "sas"}, // a lone suffix token is kept, never stripped to empty
	}
	for _, tc := range cases {
		if got := Slugify(tc.name); got != tc.want {
			t.Errorf("Slugify(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestNormalizeAggressive(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"Acme Ventures Inc", "acme"},
		{"Acme Capital Partners", "acme"},
		{"The Acme Group", "theacme"}, // "the" strips only when trailing
		{"Acme Labs", "acme"},
		{"Northwind Technologies Ltd", "northwind"},
		{"Plain Name", "plainname"},
	}
	for _, tc := range cases {
		if got := NormalizeAggressive(tc.name); got != tc.want {
			t.Errorf("NormalizeAggressive(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestSlugify_SameCompanyDifferentSpelling(t *testing.T) {
	if Slugify("Qonto SAS") != Slugify("QONTO") {
		t.Error("legal suffix and casing must not change the slug")
	}
	if Slugify("Café Noir SARL") != Slugify("Cafe Noir") {
		t.Error("diacritics must not change the slug")
	}
}
