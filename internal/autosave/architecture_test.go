package autosave

import (
	"testing"

	"gencon/testutil"
)

func TestEnhancerIsDomainAgnostic(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.AnyOf(testutil.DomainImport, testutil.BackendImport), "store enhancers must not know about blocks or backends")
}
