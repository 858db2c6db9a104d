// Package catalog reads the cooperative's reference data (parameters,
// criteria, standards and certifications) from a YAML file and seeds it into
// a service.
package catalog

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"coopquality/pkg/domain"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Catalog is the decoded file. Decimal fields are strings so a malformed
// number is reported with its field name.
type Catalog struct {
	Parameters     []Parameter     `yaml:"parameters"`
	Criteria       []Criterion     `yaml:"criteria"`
	Standards      []Standard      `yaml:"standards"`
	Certifications []Certification `yaml:"certifications"`
}

// Parameter describes one measurable parameter.
type Parameter struct {
	Code          string `yaml:"code"`
	Name          string `yaml:"name"`
	Type          string `yaml:"type"`
	Unit          string `yaml:"unit"`
	Min           string `yaml:"min"`
	Optimal       string `yaml:"optimal"`
	Max           string `yaml:"max"`
	ToleranceLow  string `yaml:"tolerance_low"`
	ToleranceHigh string `yaml:"tolerance_high"`
	Mandatory     bool   `yaml:"mandatory"`
}

// Criterion describes one scored criterion.
type Criterion struct {
	Code             string `yaml:"code"`
	Name             string `yaml:"name"`
	Kind             string `yaml:"kind"`
	Min              string `yaml:"min"`
	Optimal          string `yaml:"optimal"`
	Max              string `yaml:"max"`
	ScaleMin         int    `yaml:"scale_min"`
	ScaleMax         int    `yaml:"scale_max"`
	Weight           string `yaml:"weight"`
	Mandatory        bool   `yaml:"mandatory"`
	RequiresEvidence bool   `yaml:"requires_evidence"`
}

// Standard references its items by definition code.
type Standard struct {
	Code              string         `yaml:"code"`
	Name              string         `yaml:"name"`
	ProductID         string         `yaml:"product_id"`
	CategoryID        string         `yaml:"category_id"`
	Tier              string         `yaml:"tier"`
	Mode              string         `yaml:"mode"`
	ApprovalThreshold string         `yaml:"approval_threshold"`
	Items             []StandardItem `yaml:"items"`
}

// StandardItem points at a parameter (threshold mode) or criterion (weighted
// mode) code, with optional overrides.
type StandardItem struct {
	Code      string `yaml:"code"`
	Weight    string `yaml:"weight"`
	Mandatory *bool  `yaml:"mandatory"`
}

// Certification dates use YYYY-MM-DD.
type Certification struct {
	Code       string `yaml:"code"`
	Name       string `yaml:"name"`
	Issuer     string `yaml:"issuer"`
	ProductID  string `yaml:"product_id"`
	CategoryID string `yaml:"category_id"`
	IssuedOn   string `yaml:"issued_on"`
	ExpiresOn  string `yaml:"expires_on"`
}

// Load reads and validates the catalog at path.
func Load(path string) (Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Decode(bytes.NewReader(raw))
	if err != nil {
		return Catalog{}, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Decode parses and validates a catalog. Unknown keys are rejected.
func Decode(r io.Reader) (Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var c Catalog
	if err := dec.Decode(&c); err != nil && err != io.EOF {
		return Catalog{}, fmt.Errorf("decode: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// Validate checks codes are unique and every standard item resolves to a
// definition of the family its mode expects.
func (c Catalog) Validate() error {
	params := map[string]bool{}
	for i, p := range c.Parameters {
		if strings.TrimSpace(p.Code) == "" {
			return fmt.Errorf("parameters[%d]: code is required", i)
		}
		if params[p.Code] {
			return fmt.Errorf("parameters[%d]: duplicate code %q", i, p.Code)
		}
		params[p.Code] = true
		if _, err := p.definition(); err != nil {
			return fmt.Errorf("parameter %s: %w", p.Code, err)
		}
	}
	criteria := map[string]bool{}
	for i, cr := range c.Criteria {
		if strings.TrimSpace(cr.Code) == "" {
			return fmt.Errorf("criteria[%d]: code is required", i)
		}
		if criteria[cr.Code] || params[cr.Code] {
			return fmt.Errorf("criteria[%d]: duplicate code %q", i, cr.Code)
		}
		criteria[cr.Code] = true
		if _, err := cr.definition(); err != nil {
			return fmt.Errorf("criterion %s: %w", cr.Code, err)
		}
	}
	standards := map[string]bool{}
	for i, s := range c.Standards {
		if strings.TrimSpace(s.Code) == "" {
			return fmt.Errorf("standards[%d]: code is required", i)
		}
		if standards[s.Code] {
			return fmt.Errorf("standards[%d]: duplicate code %q", i, s.Code)
		}
		standards[s.Code] = true
		known := params
		if domain.ScoringMode(s.Mode) == domain.ScoringWeighted {
			known = criteria
		}
		if len(s.Items) == 0 {
			return fmt.Errorf("standard %s: no items", s.Code)
		}
		for _, it := range s.Items {
			if !known[it.Code] {
				return fmt.Errorf("standard %s: unknown item %q for mode %q", s.Code, it.Code, s.mode())
			}
			if _, err := optionalDecimal("weight", it.Weight); err != nil {
				return fmt.Errorf("standard %s item %s: %w", s.Code, it.Code, err)
			}
		}
		if _, err := optionalDecimal("approval_threshold", s.ApprovalThreshold); err != nil {
			return fmt.Errorf("standard %s: %w", s.Code, err)
		}
	}
	for i, cert := range c.Certifications {
		if strings.TrimSpace(cert.Name) == "" {
			return fmt.Errorf("certifications[%d]: name is required", i)
		}
		if _, err := cert.certification(); err != nil {
			return fmt.Errorf("certification %s: %w", cert.Name, err)
		}
	}
	return nil
}

func (s Standard) mode() domain.ScoringMode {
	if s.Mode == "" {
		return domain.ScoringThreshold
	}
	return domain.ScoringMode(s.Mode)
}

func (p Parameter) definition() (domain.ParameterDefinition, error) {
	def := domain.ParameterDefinition{
		Code:      p.Code,
		Name:      p.Name,
		Type:      domain.ParameterType(p.Type),
		Unit:      p.Unit,
		Mandatory: p.Mandatory,
	}
	var err error
	if def.Min, err = optionalDecimal("min", p.Min); err != nil {
		return def, err
	}
	if def.Optimal, err = optionalDecimal("optimal", p.Optimal); err != nil {
		return def, err
	}
	if def.Max, err = optionalDecimal("max", p.Max); err != nil {
		return def, err
	}
	if def.ToleranceLow, err = decimalOrZero("tolerance_low", p.ToleranceLow); err != nil {
		return def, err
	}
	if def.ToleranceHigh, err = decimalOrZero("tolerance_high", p.ToleranceHigh); err != nil {
		return def, err
	}
	return def, def.Validate()
}

func (c Criterion) definition() (domain.CriterionDefinition, error) {
	def := domain.CriterionDefinition{
		Code:             c.Code,
		Name:             c.Name,
		Kind:             domain.EvaluationKind(c.Kind),
		ScaleMin:         c.ScaleMin,
		ScaleMax:         c.ScaleMax,
		Mandatory:        c.Mandatory,
		RequiresEvidence: c.RequiresEvidence,
	}
	var err error
	if def.Min, err = optionalDecimal("min", c.Min); err != nil {
		return def, err
	}
	if def.Optimal, err = optionalDecimal("optimal", c.Optimal); err != nil {
		return def, err
	}
	if def.Max, err = optionalDecimal("max", c.Max); err != nil {
		return def, err
	}
	if def.Weight, err = decimalOrZero("weight", c.Weight); err != nil {
		return def, err
	}
	return def, def.Validate()
}

func (c Certification) certification() (domain.Certification, error) {
	cert := domain.Certification{
		Code:       c.Code,
		Name:       c.Name,
		Issuer:     c.Issuer,
		ProductID:  c.ProductID,
		CategoryID: c.CategoryID,
	}
	if c.IssuedOn != "" {
		t, err := time.Parse(time.DateOnly, c.IssuedOn)
		if err != nil {
			return cert, fmt.Errorf("issued_on: %w", err)
		}
		cert.IssuedOn = t
	}
	t, err := time.Parse(time.DateOnly, c.ExpiresOn)
	if err != nil {
		return cert, fmt.Errorf("expires_on: %w", err)
	}
	cert.ExpiresOn = t
	if !cert.IssuedOn.IsZero() && !cert.ExpiresOn.After(cert.IssuedOn) {
		return cert, fmt.Errorf("expires_on %s is not after issued_on %s", c.ExpiresOn, c.IssuedOn)
	}
	return cert, nil
}

func optionalDecimal(field, raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return &d, nil
}

func decimalOrZero(field, raw string) (decimal.Decimal, error) {
	d, err := optionalDecimal(field, raw)
	if err != nil {
		return decimal.Zero, err
	}
	if d == nil {
		return decimal.Zero, nil
	}
	return *d, nil
}
