package health

import (
	"context"
	"errors"
	"testing"

	"github.com/libfaes/eventstream/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestChecker_HealthyWhenAllTargetsReachable(t *testing.T) {
	c := NewChecker(map[string]store.Pinger{"primary": fakePinger{}})
	report := c.Check(context.Background())
	assert.True(t, report.Healthy)
	require.Len(t, report.Targets, 1)
	assert.True(t, report.Targets[0].Reachable)
}

func TestChecker_UnhealthyWhenOneTargetFails(t *testing.T) {
	c := NewChecker(map[string]store.Pinger{
		"primary":   fakePinger{},
		"secondary": fakePinger{err: errors.New("connection refused")},
	})
	report := c.Check(context.Background())
	assert.False(t, report.Healthy)
	assert.Len(t, report.Targets, 2)
}
