package core

import (
	"context"
	"strconv"
	"strings"
	"time"

	"coopquality/internal/alerting"
	"coopquality/pkg/domain"
)

// SweepReport summarises one certification sweep.
type SweepReport struct {
	Checked  int            `json:"checked"`
	Expiring int            `json:"expiring"`
	Expired  int            `json:"expired"`
	Alerts   []domain.Alert `json:"alerts"`
}

// CreateCertification stores an active certification.
func (s *Service) CreateCertification(ctx context.Context, cert domain.Certification) (domain.Certification, domain.Result, error) {
	var created domain.Certification
	res, err := s.execute(ctx, opCreateCertification, func(tx domain.Transaction) (audited, error) {
		if strings.TrimSpace(cert.Name) == "" {
			return audited{}, domain.ValidationError{Entity: domain.EntityCertification, Field: "name", Message: "is required"}
		}
		if cert.IssuedOn.IsZero() {
			cert.IssuedOn = s.now()
		}
		if !cert.ExpiresOn.After(cert.IssuedOn) {
			return audited{}, domain.ValidationError{Entity: domain.EntityCertification, Field: "expires_on", Message: "must be after the issue date"}
		}
		cert.State = domain.CertificationActive
		cert.RenewedOn = nil
		var err error
		created, err = tx.CreateCertification(cert)
		return audited{ID: created.ID, Details: map[string]string{"expires_on": created.ExpiresOn.Format(time.DateOnly)}}, err
	})
	return created, res, err
}

// RenewCertification retires the current record as renewed and issues an
// active successor expiring at newExpiry. Open alerts for the old record are
// resolved.
func (s *Service) RenewCertification(ctx context.Context, id string, newExpiry time.Time) (domain.Certification, domain.Result, error) {
	var successor domain.Certification
	res, err := s.execute(ctx, opRenewCertification, func(tx domain.Transaction) (audited, error) {
		current, err := requireCertification(tx, id)
		if err != nil {
			return audited{ID: id}, err
		}
		switch current.State {
		case domain.CertificationRevoked, domain.CertificationRenewed:
			return audited{ID: id}, invalidCertificationState(current, "renew")
		}
		now := s.now()
		if !newExpiry.After(now) {
			return audited{ID: id}, domain.ValidationError{Entity: domain.EntityCertification, Field: "expires_on", Message: "renewal must expire in the future"}
		}
		if _, err := tx.UpdateCertification(id, func(c *domain.Certification) error {
			c.State = domain.CertificationRenewed
			c.RenewedOn = &now
			return nil
		}); err != nil {
			return audited{ID: id}, err
		}
		next := current
		next.Base = domain.Base{}
		next.IssuedOn = now
		next.ExpiresOn = newExpiry
		next.RenewedOn = nil
		next.RenewalOf = current.ID
		next.State = domain.CertificationActive
		next.StateReason = ""
		successor, err = tx.CreateCertification(next)
		if err != nil {
			return audited{ID: id}, err
		}
		if err := s.resolveAlertsFor(tx, domain.EntityCertification, id); err != nil {
			return audited{ID: id}, err
		}
		return audited{ID: successor.ID, Details: map[string]string{"renewal_of": id, "expires_on": newExpiry.Format(time.DateOnly)}}, nil
	})
	return successor, res, err
}

// SuspendCertification puts a certification on hold.
func (s *Service) SuspendCertification(ctx context.Context, id, reason string) (domain.Certification, domain.Result, error) {
	return s.moveCertification(ctx, opSuspendCertification, id, domain.CertificationSuspended, reason, "suspend",
		domain.CertificationActive, domain.CertificationExpiring)
}

// RevokeCertification withdraws a certification permanently.
func (s *Service) RevokeCertification(ctx context.Context, id, reason string) (domain.Certification, domain.Result, error) {
	return s.moveCertification(ctx, opRevokeCertification, id, domain.CertificationRevoked, reason, "revoke",
		domain.CertificationActive, domain.CertificationExpiring, domain.CertificationExpired, domain.CertificationSuspended)
}

func (s *Service) moveCertification(ctx context.Context, op, id string, to domain.CertificationState, reason, verb string, from ...domain.CertificationState) (domain.Certification, domain.Result, error) {
	var updated domain.Certification
	res, err := s.execute(ctx, op, func(tx domain.Transaction) (audited, error) {
		current, err := requireCertification(tx, id)
		if err != nil {
			return audited{ID: id}, err
		}
		allowed := false
		for _, st := range from {
			allowed = allowed || current.State == st
		}
		if !allowed {
			return audited{ID: id}, invalidCertificationState(current, verb)
		}
		updated, err = tx.UpdateCertification(id, func(c *domain.Certification) error {
			c.State = to
			c.StateReason = reason
			return nil
		})
		return audited{ID: id, Details: map[string]string{"reason": reason}}, err
	})
	return updated, res, err
}

// SweepCertifications classifies every tracked certification in one
// transaction. Expired ones move to expired with a critical alert, expiring
// ones get a medium alert. Alerts already active are not raised again, so
// repeated or concurrent sweeps are idempotent.
func (s *Service) SweepCertifications(ctx context.Context) (SweepReport, domain.Result, error) {
	var report SweepReport
	res, err := s.execute(ctx, opSweepCertifications, func(tx domain.Transaction) (audited, error) {
		report = SweepReport{}
		now := s.now()
		var candidates []domain.Alert
		for _, cert := range tx.ListCertifications() {
			status, days := s.opts.alerts.Classify(cert, now)
			if status == alerting.StatusNotTracked {
				continue
			}
			report.Checked++
			switch status {
			case alerting.StatusExpiring:
				report.Expiring++
			case alerting.StatusExpired:
				report.Expired++
				if _, err := tx.UpdateCertification(cert.ID, func(c *domain.Certification) error {
					c.State = domain.CertificationExpired
					return nil
				}); err != nil {
					return audited{}, err
				}
			}
			if a, ok := alerting.ForCertification(cert, status, days); ok {
				candidates = append(candidates, a)
			}
		}
		var err error
		report.Alerts, err = s.raiseAlerts(tx, candidates)
		if err != nil {
			return audited{}, err
		}
		return audited{Details: map[string]string{
			"checked":  strconv.Itoa(report.Checked),
			"expiring": strconv.Itoa(report.Expiring),
			"expired":  strconv.Itoa(report.Expired),
			"alerts":   strconv.Itoa(len(report.Alerts)),
		}}, nil
	})
	if err != nil {
		return report, res, err
	}
	s.opts.logger.Info("certification sweep", "checked", report.Checked, "expiring", report.Expiring, "expired", report.Expired, "alerts", len(report.Alerts))
	s.dispatch(ctx, report.Alerts)
	return report, res, nil
}

// GetCertification returns a certification with its derived validity.
func (s *Service) GetCertification(ctx context.Context, id string) (domain.Certification, error) {
	var cert domain.Certification
	err := s.store.View(ctx, func(v domain.TransactionView) error {
		var err error
		cert, err = requireCertification(v, id)
		return err
	})
	return cert, err
}

// ListCertifications returns all certifications.
func (s *Service) ListCertifications(ctx context.Context) ([]domain.Certification, error) {
	var out []domain.Certification
	err := s.store.View(ctx, func(v domain.TransactionView) error {
		out = v.ListCertifications()
		return nil
	})
	return out, err
}

type certificationFinder interface {
	FindCertification(id string) (domain.Certification, bool)
}

func requireCertification(v certificationFinder, id string) (domain.Certification, error) {
	cert, ok := v.FindCertification(id)
	if !ok {
		return domain.Certification{}, domain.NotFoundError{Entity: domain.EntityCertification, ID: id}
	}
	return cert, nil
}

func invalidCertificationState(c domain.Certification, op string) error {
	return domain.InvalidStateError{Entity: domain.EntityCertification, ID: c.ID, State: string(c.State), Operation: op}
}
