package core

import (
	"context"
	"strings"

	"coopquality/pkg/domain"
)

// CreateParameterDefinition validates and stores a parameter at version 1.
func (s *Service) CreateParameterDefinition(ctx context.Context, def domain.ParameterDefinition) (domain.ParameterDefinition, domain.Result, error) {
	var created domain.ParameterDefinition
	res, err := s.execute(ctx, opCreateParameter, func(tx domain.Transaction) (audited, error) {
		if err := s.engine.CheckParameter(def); err != nil {
			return audited{}, err
		}
		if def.Code != "" {
			for _, existing := range tx.ListParameters() {
				if strings.EqualFold(existing.Code, def.Code) {
					return audited{}, domain.ValidationError{Entity: domain.EntityParameter, Field: "code", Message: "duplicate code " + def.Code}
				}
			}
		}
		def.Version = 1
		var err error
		created, err = tx.CreateParameter(def)
		return audited{ID: created.ID}, err
	})
	return created, res, err
}

// UpdateParameterDefinition applies mutator and bumps the version. Edits of
// definitions already used by finished inspections succeed with a warning.
func (s *Service) UpdateParameterDefinition(ctx context.Context, id string, mutator func(*domain.ParameterDefinition) error) (domain.ParameterDefinition, domain.Result, error) {
	var updated domain.ParameterDefinition
	res, err := s.execute(ctx, opUpdateParameter, func(tx domain.Transaction) (audited, error) {
		var err error
		updated, err = tx.UpdateParameter(id, func(p *domain.ParameterDefinition) error {
			version := p.Version
			if err := mutator(p); err != nil {
				return err
			}
			p.Version = version + 1
			return s.engine.CheckParameter(*p)
		})
		return audited{ID: id}, err
	})
	return updated, res, err
}

// CreateCriterionDefinition validates and stores a criterion at version 1.
func (s *Service) CreateCriterionDefinition(ctx context.Context, def domain.CriterionDefinition) (domain.CriterionDefinition, domain.Result, error) {
	var created domain.CriterionDefinition
	res, err := s.execute(ctx, opCreateCriterion, func(tx domain.Transaction) (audited, error) {
		if err := def.Validate(); err != nil {
			return audited{}, err
		}
		if def.Code != "" {
			for _, existing := range tx.ListCriteria() {
				if strings.EqualFold(existing.Code, def.Code) {
					return audited{}, domain.ValidationError{Entity: domain.EntityCriterion, Field: "code", Message: "duplicate code " + def.Code}
				}
			}
		}
		def.Version = 1
		var err error
		created, err = tx.CreateCriterion(def)
		return audited{ID: created.ID}, err
	})
	return created, res, err
}

// UpdateCriterionDefinition applies mutator and bumps the version.
func (s *Service) UpdateCriterionDefinition(ctx context.Context, id string, mutator func(*domain.CriterionDefinition) error) (domain.CriterionDefinition, domain.Result, error) {
	var updated domain.CriterionDefinition
	res, err := s.execute(ctx, opUpdateCriterion, func(tx domain.Transaction) (audited, error) {
		var err error
		updated, err = tx.UpdateCriterion(id, func(c *domain.CriterionDefinition) error {
			version := c.Version
			if err := mutator(c); err != nil {
				return err
			}
			c.Version = version + 1
			return c.Validate()
		})
		return audited{ID: id}, err
	})
	return updated, res, err
}

// CreateStandard stores a standard after checking that every item resolves
// to a definition of the kind its scoring mode expects.
func (s *Service) CreateStandard(ctx context.Context, std domain.Standard) (domain.Standard, domain.Result, error) {
	var created domain.Standard
	res, err := s.execute(ctx, opCreateStandard, func(tx domain.Transaction) (audited, error) {
		if std.Mode == "" {
			std.Mode = domain.ScoringThreshold
		}
		if err := std.Validate(); err != nil {
			return audited{}, err
		}
		if _, err := s.engine.Items(std, tx); err != nil {
			return audited{}, domain.ValidationError{Entity: domain.EntityStandard, Field: "items", Message: err.Error()}
		}
		var err error
		created, err = tx.CreateStandard(std)
		return audited{ID: created.ID}, err
	})
	return created, res, err
}

// ListStandards returns all standards.
func (s *Service) ListStandards(ctx context.Context) ([]domain.Standard, error) {
	var out []domain.Standard
	err := s.store.View(ctx, func(v domain.TransactionView) error {
		out = v.ListStandards()
		return nil
	})
	return out, err
}

// ListParameterDefinitions returns all parameter definitions.
func (s *Service) ListParameterDefinitions(ctx context.Context) ([]domain.ParameterDefinition, error) {
	var out []domain.ParameterDefinition
	err := s.store.View(ctx, func(v domain.TransactionView) error {
		out = v.ListParameters()
		return nil
	})
	return out, err
}

// ListCriterionDefinitions returns all criterion definitions.
func (s *Service) ListCriterionDefinitions(ctx context.Context) ([]domain.CriterionDefinition, error) {
	var out []domain.CriterionDefinition
	err := s.store.View(ctx, func(v domain.TransactionView) error {
		out = v.ListCriteria()
		return nil
	})
	return out, err
}
