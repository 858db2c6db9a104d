package alerting

import "coopquality/pkg/domain"

// Deduplicate drops candidates that match an open alert in existing, or an
// earlier candidate, on Alert.DedupKey. Order is preserved.
func Deduplicate(candidates, existing []domain.Alert) []domain.Alert {
	seen := make(map[string]struct{}, len(existing)+len(candidates))
	for _, a := range existing {
		if a.State.Open() {
			seen[a.DedupKey()] = struct{}{}
		}
	}
	out := make([]domain.Alert, 0, len(candidates))
	for _, c := range candidates {
		key := c.DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
