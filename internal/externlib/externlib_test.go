package externlib_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rookieCookies/azurite-sub000/internal/externlib"
	"github.com/rookieCookies/azurite-sub000/internal/vm"
)

func TestLookupVMPanicsOnUnknownHandle(t *testing.T) {
	assert.Panics(t, func() { externlib.LookupVM(999999) })
}

func TestNewManagerRegistersAResolvableHandle(t *testing.T) {
	m := vm.New(4)
	mgr := externlib.NewManager(m)
	assert.Same(t, m, externlib.LookupVM(mgr.VMHandle()))

	// Shutdown with no libraries loaded must be a clean no-op.
	assert.NoError(t, mgr.Shutdown())
	assert.Panics(t, func() { externlib.LookupVM(mgr.VMHandle()) })
}
