package catalog

import (
	"context"
	"fmt"
	"strings"

	"coopquality/pkg/domain"
)

// Target is the subset of core.Service used for seeding.
type Target interface {
	CreateParameterDefinition(ctx context.Context, def domain.ParameterDefinition) (domain.ParameterDefinition, domain.Result, error)
	CreateCriterionDefinition(ctx context.Context, def domain.CriterionDefinition) (domain.CriterionDefinition, domain.Result, error)
	CreateStandard(ctx context.Context, std domain.Standard) (domain.Standard, domain.Result, error)
	CreateCertification(ctx context.Context, cert domain.Certification) (domain.Certification, domain.Result, error)
	ListParameterDefinitions(ctx context.Context) ([]domain.ParameterDefinition, error)
	ListCriterionDefinitions(ctx context.Context) ([]domain.CriterionDefinition, error)
	ListStandards(ctx context.Context) ([]domain.Standard, error)
	ListCertifications(ctx context.Context) ([]domain.Certification, error)
}

// Report counts what Seed created and what already existed.
type Report struct {
	Created map[domain.EntityType]int `json:"created"`
	Skipped map[domain.EntityType]int `json:"skipped"`
}

// Seed creates every catalog record missing from target. Records are matched
// by code (certifications by code, or by name when the code is empty), so
// seeding the same catalog twice creates nothing the second time.
func Seed(ctx context.Context, target Target, c Catalog) (Report, error) {
	rep := Report{Created: map[domain.EntityType]int{}, Skipped: map[domain.EntityType]int{}}
	paramIDs := map[string]string{}
	criterionIDs := map[string]string{}

	params, err := target.ListParameterDefinitions(ctx)
	if err != nil {
		return rep, err
	}
	for _, p := range params {
		paramIDs[key(p.Code)] = p.ID
	}
	for _, p := range c.Parameters {
		if id, ok := paramIDs[key(p.Code)]; ok && id != "" {
			rep.Skipped[domain.EntityParameter]++
			continue
		}
		def, err := p.definition()
		if err != nil {
			return rep, fmt.Errorf("parameter %s: %w", p.Code, err)
		}
		created, _, err := target.CreateParameterDefinition(ctx, def)
		if err != nil {
			return rep, fmt.Errorf("parameter %s: %w", p.Code, err)
		}
		paramIDs[key(p.Code)] = created.ID
		rep.Created[domain.EntityParameter]++
	}

	criteria, err := target.ListCriterionDefinitions(ctx)
	if err != nil {
		return rep, err
	}
	for _, cr := range criteria {
		criterionIDs[key(cr.Code)] = cr.ID
	}
	for _, cr := range c.Criteria {
		if id, ok := criterionIDs[key(cr.Code)]; ok && id != "" {
			rep.Skipped[domain.EntityCriterion]++
			continue
		}
		def, err := cr.definition()
		if err != nil {
			return rep, fmt.Errorf("criterion %s: %w", cr.Code, err)
		}
		created, _, err := target.CreateCriterionDefinition(ctx, def)
		if err != nil {
			return rep, fmt.Errorf("criterion %s: %w", cr.Code, err)
		}
		criterionIDs[key(cr.Code)] = created.ID
		rep.Created[domain.EntityCriterion]++
	}

	standards, err := target.ListStandards(ctx)
	if err != nil {
		return rep, err
	}
	existing := map[string]bool{}
	for _, s := range standards {
		existing[key(s.Code)] = true
	}
	for _, s := range c.Standards {
		if existing[key(s.Code)] {
			rep.Skipped[domain.EntityStandard]++
			continue
		}
		std, err := s.standard(paramIDs, criterionIDs)
		if err != nil {
			return rep, fmt.Errorf("standard %s: %w", s.Code, err)
		}
		if _, _, err := target.CreateStandard(ctx, std); err != nil {
			return rep, fmt.Errorf("standard %s: %w", s.Code, err)
		}
		existing[key(s.Code)] = true
		rep.Created[domain.EntityStandard]++
	}

	certs, err := target.ListCertifications(ctx)
	if err != nil {
		return rep, err
	}
	seen := map[string]bool{}
	for _, cert := range certs {
		seen[certKey(cert.Code, cert.Name)] = true
	}
	for _, cc := range c.Certifications {
		if seen[certKey(cc.Code, cc.Name)] {
			rep.Skipped[domain.EntityCertification]++
			continue
		}
		cert, err := cc.certification()
		if err != nil {
			return rep, fmt.Errorf("certification %s: %w", cc.Name, err)
		}
		if _, _, err := target.CreateCertification(ctx, cert); err != nil {
			return rep, fmt.Errorf("certification %s: %w", cc.Name, err)
		}
		seen[certKey(cc.Code, cc.Name)] = true
		rep.Created[domain.EntityCertification]++
	}
	return rep, nil
}

func (s Standard) standard(paramIDs, criterionIDs map[string]string) (domain.Standard, error) {
	ids := paramIDs
	if s.mode() == domain.ScoringWeighted {
		ids = criterionIDs
	}
	std := domain.Standard{
		Code:       s.Code,
		Name:       s.Name,
		ProductID:  s.ProductID,
		CategoryID: s.CategoryID,
		Tier:       domain.QualityTier(s.Tier),
		Mode:       s.mode(),
	}
	threshold, err := optionalDecimal("approval_threshold", s.ApprovalThreshold)
	if err != nil {
		return std, err
	}
	std.ApprovalThreshold = threshold
	for i, it := range s.Items {
		id, ok := ids[key(it.Code)]
		if !ok {
			return std, fmt.Errorf("unknown item %q", it.Code)
		}
		weight, err := optionalDecimal("weight", it.Weight)
		if err != nil {
			return std, err
		}
		std.Items = append(std.Items, domain.StandardItem{
			DefinitionID: id,
			Weight:       weight,
			Mandatory:    it.Mandatory,
			Order:        i + 1,
		})
	}
	return std, nil
}

func key(code string) string { return strings.ToLower(strings.TrimSpace(code)) }

func certKey(code, name string) string {
	if strings.TrimSpace(code) != "" {
		return "code:" + key(code)
	}
	return "name:" + key(name)
}
