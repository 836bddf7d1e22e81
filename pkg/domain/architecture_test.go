package domain

import (
	"testing"

	"gencon/testutil"
)

func TestDomainDoesNotImportModulePackages(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.Under(testutil.ModulePath), "the entity model is a leaf package")
}
