package core

import (
	"context"

	"coopquality/internal/alerting"
	"coopquality/pkg/domain"
)

// AlertFilter narrows ListAlerts. Zero fields match everything.
type AlertFilter struct {
	State    domain.AlertState
	Type     domain.AlertType
	Severity domain.Criticality
	EntityID string
}

func (f AlertFilter) match(a domain.Alert) bool {
	return (f.State == "" || a.State == f.State) &&
		(f.Type == "" || a.Type == f.Type) &&
		(f.Severity == "" || a.Severity == f.Severity) &&
		(f.EntityID == "" || a.EntityID == f.EntityID)
}

// raiseAlerts stores the candidates that do not duplicate an active alert
// and returns what was created.
func (s *Service) raiseAlerts(tx domain.Transaction, candidates []domain.Alert) ([]domain.Alert, error) {
	fresh := alerting.Deduplicate(candidates, tx.ListAlerts())
	created := make([]domain.Alert, 0, len(fresh))
	for _, a := range fresh {
		a.State = domain.AlertActive
		stored, err := tx.CreateAlert(a)
		if err != nil {
			return nil, err
		}
		created = append(created, stored)
	}
	return created, nil
}

// ListAlerts returns committed alerts matching filter, oldest first.
func (s *Service) ListAlerts(ctx context.Context, filter AlertFilter) ([]domain.Alert, error) {
	var out []domain.Alert
	err := s.store.View(ctx, func(v domain.TransactionView) error {
		for _, a := range v.ListAlerts() {
			if filter.match(a) {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, err
}

// AcknowledgeAlert marks an active alert as seen by actor.
func (s *Service) AcknowledgeAlert(ctx context.Context, id, actor string) (domain.Alert, domain.Result, error) {
	return s.moveAlert(ctx, opAcknowledgeAlert, id, "acknowledge", func(a *domain.Alert) error {
		if a.State != domain.AlertActive {
			return invalidAlertState(*a, "acknowledge")
		}
		if actor == "" {
			actor = ActorFrom(ctx)
		}
		now := s.now()
		a.State = domain.AlertAcknowledged
		a.AcknowledgedBy = actor
		a.AcknowledgedAt = &now
		return nil
	})
}

// ResolveAlert closes an active or acknowledged alert as handled.
func (s *Service) ResolveAlert(ctx context.Context, id string) (domain.Alert, domain.Result, error) {
	return s.moveAlert(ctx, opResolveAlert, id, "resolve", s.closeAlert(domain.AlertResolved))
}

// DismissAlert closes an active or acknowledged alert without action.
func (s *Service) DismissAlert(ctx context.Context, id string) (domain.Alert, domain.Result, error) {
	return s.moveAlert(ctx, opDismissAlert, id, "dismiss", s.closeAlert(domain.AlertDismissed))
}

func (s *Service) closeAlert(to domain.AlertState) func(*domain.Alert) error {
	return func(a *domain.Alert) error {
		if !a.State.Open() {
			return invalidAlertState(*a, string(to))
		}
		now := s.now()
		a.State = to
		a.ClosedAt = &now
		return nil
	}
}

func (s *Service) moveAlert(ctx context.Context, op, id, verb string, mutate func(*domain.Alert) error) (domain.Alert, domain.Result, error) {
	var updated domain.Alert
	res, err := s.execute(ctx, op, func(tx domain.Transaction) (audited, error) {
		if _, ok := tx.FindAlert(id); !ok {
			return audited{ID: id}, domain.NotFoundError{Entity: domain.EntityAlert, ID: id}
		}
		var err error
		updated, err = tx.UpdateAlert(id, mutate)
		return audited{ID: id, Details: map[string]string{"action": verb}}, err
	})
	return updated, res, err
}

// resolveAlertsFor closes every open alert raised for entityID.
func (s *Service) resolveAlertsFor(tx domain.Transaction, entity domain.EntityType, entityID string) error {
	for _, a := range tx.ListAlerts() {
		if a.Entity != entity || a.EntityID != entityID {
			continue
		}
		if !a.State.Open() {
			continue
		}
		if _, err := tx.UpdateAlert(a.ID, s.closeAlert(domain.AlertResolved)); err != nil {
			return err
		}
	}
	return nil
}

func invalidAlertState(a domain.Alert, op string) error {
	return domain.InvalidStateError{Entity: domain.EntityAlert, ID: a.ID, State: string(a.State), Operation: op}
}
