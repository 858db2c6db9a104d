package domain

import (
	"testing"

	"coopquality/testutil"
)

// TestDomainDoesNotImportInternal keeps the domain layer free of
// implementation packages and storage drivers.
func TestDomainDoesNotImportInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.AnyOf(
		testutil.InternalImportForbidden,
		testutil.PersistenceImportForbidden,
		testutil.TransportImportForbidden,
	), "domain must stay independent of adapters and storage")
}
