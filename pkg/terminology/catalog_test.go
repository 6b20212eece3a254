package terminology

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDefaultCatalogLookup(t *testing.T) {
	cat := DefaultCatalog()

	param, ok := cat.Lookup("ALT")
	if !ok {
		t.Fatal("ALT should be in the default catalog")
	}
	if param.Display != "Alanine Aminotransferase" || param.LOINC != "1742-6" {
		t.Fatalf("unexpected entry: %+v", param)
	}

	if _, ok := cat.Lookup("alt"); !ok {
		t.Fatal("lookup must be case-insensitive")
	}
	if _, ok := cat.Lookup("GLUCOSE"); ok {
		t.Fatal("unknown code should not resolve")
	}
}

func TestEfficacyParamsSorted(t *testing.T) {
	got := DefaultCatalog().EfficacyParams()
	want := []string{"DIABP", "SYSBP"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestLoadCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `
parameters:
  GLUC:
    display: Glucose
    loinc: 2345-7
    unit: mmol/L
    efficacy: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	cat, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	param, ok := cat.Lookup("GLUC")
	if !ok || param.Display != "Glucose" || !param.Efficacy {
		t.Fatalf("unexpected entry: %+v ok=%v", param, ok)
	}
}

func TestLoadEmptyCatalogFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte("parameters: {}\n"), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for empty catalog")
	}
}

func TestLoadEmptyPathUsesDefault(t *testing.T) {
	cat, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := cat.Lookup("ALT"); !ok {
		t.Fatal("empty path should fall back to the default catalog")
	}
}
