package terminology

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parameter is one controlled-terminology entry: the analysis parameter
// code plus the codes and unit reviewers expect to see on listings.
type Parameter struct {
	Display  string `yaml:"display" json:"display"`
	LOINC    string `yaml:"loinc" json:"loinc"`
	Unit     string `yaml:"unit" json:"unit"`
	Efficacy bool   `yaml:"efficacy" json:"efficacy"`
}

type Catalog struct {
	Parameters map[string]Parameter `yaml:"parameters" json:"parameters"`
}

func Load(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultCatalog(), err
	}
	var cat Catalog
	if err := yaml.Unmarshal(content, &cat); err != nil {
		return Catalog{}, err
	}
	if len(cat.Parameters) == 0 {
		return Catalog{}, fmt.Errorf("parameter catalog empty")
	}
	return cat, nil
}

func (c Catalog) Lookup(code string) (Parameter, bool) {
	if c.Parameters == nil {
		return Parameter{}, false
	}
	param, ok := c.Parameters[strings.ToUpper(code)]
	if ok {
		return param, true
	}
	for k, v := range c.Parameters {
		if strings.EqualFold(k, code) {
			return v, true
		}
	}
	return Parameter{}, false
}

// EfficacyParams lists the codes flagged as efficacy parameters, for use
// as the default efficacy parameter set when a study config does not name
// one.
func (c Catalog) EfficacyParams() []string {
	var codes []string
	for code, param := range c.Parameters {
		if param.Efficacy {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes
}

func DefaultCatalog() Catalog {
	return Catalog{Parameters: map[string]Parameter{
		"ALT": {
			Display: "Alanine Aminotransferase",
			LOINC:   "1742-6",
			Unit:    "U/L",
		},
		"AST": {
			Display: "Aspartate Aminotransferase",
			LOINC:   "1920-8",
			Unit:    "U/L",
		},
		"BILI": {
			Display: "Bilirubin",
			LOINC:   "1975-2",
			Unit:    "umol/L",
		},
		"SYSBP": {
			Display:  "Systolic Blood Pressure",
			LOINC:    "8480-6",
			Unit:     "mmHg",
			Efficacy: true,
		},
		"DIABP": {
			Display:  "Diastolic Blood Pressure",
			LOINC:    "8462-4",
			Unit:     "mmHg",
			Efficacy: true,
		},
	}}
}
