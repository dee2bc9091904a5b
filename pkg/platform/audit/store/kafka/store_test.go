package kafka

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_RequiresBrokers(t *testing.T) {
	store, err := New(context.Background(), nil)
	assert.Error(t, err)
	assert.Nil(t, store)
}
