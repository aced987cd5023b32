package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfAndRetryable(t *testing.T) {
	base := fmt.Errorf("boom")

	tr := Transient("HK.00700", base)
	assert.Equal(t, KindTransient, KindOf(tr))
	assert.True(t, IsRetryable(tr))
	assert.True(t, errors.Is(tr, base))

	nf := NotFound("US.NVDA", base)
	assert.Equal(t, KindNotFound, KindOf(nf))
	assert.False(t, IsRetryable(nf))

	cf := Conflict("A.600519", base)
	assert.True(t, IsRetryable(cf))

	assert.Equal(t, KindInternalAssert, KindOf(fmt.Errorf("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestWrappedKindSurvives(t *testing.T) {
	inner := Transient("HK.00700", fmt.Errorf("timeout"))
	outer := fmt.Errorf("sync symbol: %w", inner)
	assert.Equal(t, KindTransient, KindOf(outer))
	assert.True(t, IsRetryable(outer))
}

func TestErrorString(t *testing.T) {
	e := Invalid("HK.00700", "bad range %d", 5)
	assert.Contains(t, e.Error(), "INVALID_INPUT")
	assert.Contains(t, e.Error(), "HK.00700")
	assert.Contains(t, e.Error(), "bad range 5")
}
