package catalog

import (
	"reflect"
	"testing"
)

func TestLookupIsCaseInsensitive(t *testing.T) {
	for _, name := range []string{"SEO", "seo", "Seo"} {
		module, ok := Lookup(name)
		if !ok {
			t.Fatalf("expected %q to resolve", name)
		}
		if module.Name != "SEO" {
			t.Fatalf("expected canonical name SEO, got %q", module.Name)
		}
	}

	if _, ok := Lookup("Blockchain"); ok {
		t.Fatalf("unknown module must not resolve")
	}
}

func TestNamesMatchCatalogOrder(t *testing.T) {
	want := []string{"SEO", "Security", "Performance", "Reputation"}
	if got := Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected names %v", got)
	}
}

func TestModulesReturnsCopy(t *testing.T) {
	first := Modules()
	first[0].Name = "tampered"
	if got := Modules(); got[0].Name != "SEO" {
		t.Fatalf("catalog must not be mutable through Modules()")
	}
}
