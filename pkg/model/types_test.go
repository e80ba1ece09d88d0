package model_test

import (
	"testing"

	"github.com/jvs-project/timelock/pkg/model"
	"github.com/stretchr/testify/assert"
)

func TestAmount_Add(t *testing.T) {
	sum, ok := model.Amount(2).Add(3)
	assert.True(t, ok)
	assert.Equal(t, model.Amount(5), sum)

	_, ok = model.MaxAmount.Add(1)
	assert.False(t, ok)

	sum, ok = model.MaxAmount.Add(0)
	assert.True(t, ok)
	assert.Equal(t, model.MaxAmount, sum)
}
