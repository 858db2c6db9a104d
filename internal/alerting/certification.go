package alerting

import (
	"fmt"
	"time"

	"coopquality/pkg/domain"
)

// Config holds the expiry warning window.
type Config struct {
	ExpiryWarningDays int
}

// DefaultConfig warns thirty days ahead of expiry.
func DefaultConfig() Config { return Config{ExpiryWarningDays: 30} }

// Validate rejects a non-positive warning window.
func (c Config) Validate() error {
	if c.ExpiryWarningDays <= 0 {
		return fmt.Errorf("alert config: expiry_warning_days must be positive, got %d", c.ExpiryWarningDays)
	}
	return nil
}

// ExpiryStatus classifies a certification at sweep time.
type ExpiryStatus int

const (
	// StatusNotTracked covers suspended, revoked, renewed and already expired records.
	StatusNotTracked ExpiryStatus = iota
	StatusValid
	StatusExpiring
	StatusExpired
)

func (s ExpiryStatus) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusExpiring:
		return "expiring"
	case StatusExpired:
		return "expired"
	default:
		return "not_tracked"
	}
}

// Classify reports the expiry status of cert at now together with the
// remaining whole days.
func (c Config) Classify(cert domain.Certification, now time.Time) (ExpiryStatus, int) {
	days := cert.DaysToExpiry(now)
	if cert.State != domain.CertificationActive && cert.State != domain.CertificationExpiring {
		return StatusNotTracked, days
	}
	switch {
	case days < 0:
		return StatusExpired, days
	case days > 0 && days <= c.ExpiryWarningDays:
		return StatusExpiring, days
	default:
		return StatusValid, days
	}
}

// ForCertification returns the alert for an expiring or expired certification.
func ForCertification(cert domain.Certification, status ExpiryStatus, days int) (domain.Alert, bool) {
	name := cert.Name
	if cert.Code != "" {
		name = cert.Code + " " + cert.Name
	}
	switch status {
	case StatusExpiring:
		return domain.Alert{
			Type:     domain.AlertCertificationExpiring,
			Severity: domain.CriticalityMedium,
			Entity:   domain.EntityCertification,
			EntityID: cert.ID,
			Title:    fmt.Sprintf("Certification %s expires in %d day(s)", name, days),
			Message:  fmt.Sprintf("%s issued by %s expires on %s", name, cert.Issuer, cert.ExpiresOn.Format(time.DateOnly)),
		}, true
	case StatusExpired:
		return domain.Alert{
			Type:     domain.AlertCertificationExpired,
			Severity: domain.CriticalityCritical,
			Entity:   domain.EntityCertification,
			EntityID: cert.ID,
			Title:    fmt.Sprintf("Certification %s expired", name),
			Message:  fmt.Sprintf("%s issued by %s expired on %s", name, cert.Issuer, cert.ExpiresOn.Format(time.DateOnly)),
		}, true
	}
	return domain.Alert{}, false
}
