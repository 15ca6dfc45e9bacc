package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestAllowedServicesMonotonicity exercises the monotonicity invariant:
// AllowedServices[d] never shrinks across successive grants.
func TestAllowedServicesMonotonicity(t *testing.T) {
	a := newAllowedServices()

	a.grant("dev-1", "00001800-0000-1000-8000-00805f9b34fb")
	assert.True(t, a.isAllowed("dev-1", "00001800-0000-1000-8000-00805f9b34fb"))
	assert.False(t, a.isAllowed("dev-1", "0000180d-0000-1000-8000-00805f9b34fb"))

	a.grantAll("dev-1", []string{"0000180D-0000-1000-8000-00805F9B34FB"})
	assert.True(t, a.isAllowed("dev-1", "0000180d-0000-1000-8000-00805f9b34fb"), "normalized uuid grant must match normalized lookup")

	before := a.list("dev-1")
	a.grant("dev-1", "00001800-0000-1000-8000-00805f9b34fb")
	after := a.list("dev-1")
	assert.ElementsMatch(t, before, after, "re-granting an existing uuid must not shrink or duplicate the set")
}

func TestAllowedServicesUnknownDevice(t *testing.T) {
	a := newAllowedServices()
	assert.False(t, a.isAllowed("nope", "00001800-0000-1000-8000-00805f9b34fb"))
	assert.Nil(t, a.list("nope"))
}
