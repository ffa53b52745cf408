package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlatformFee(t *testing.T) {
	assert.Equal(t, int64(250), platformFee(10000, 250))
	assert.Equal(t, int64(0), platformFee(10000, 0))
	assert.Equal(t, int64(10000), platformFee(10000, 10000))
	// Округление вниз: 2.5% от 39 = 0.975.
	assert.Equal(t, int64(0), platformFee(39, 250))
}

func TestSplitEscrow_EvenSplit(t *testing.T) {
	s := splitEscrow(50000, 50, 5, 250)
	assert.Equal(t, int64(2500), s.ArbFee)
	assert.Equal(t, int64(1250), s.PlatformFee)
	assert.Equal(t, int64(23125), s.ClientShare)
	assert.Equal(t, int64(23125), s.AgentShare)
	assert.Equal(t, int64(50000), s.ArbFee+s.PlatformFee+s.ClientShare+s.AgentShare)
}

func TestSplitEscrow_AllToClient(t *testing.T) {
	s := splitEscrow(50000, 100, 5, 250)
	assert.Equal(t, int64(46250), s.ClientShare)
	assert.Equal(t, int64(0), s.AgentShare)
}

func TestSplitEscrow_AllToAgent(t *testing.T) {
	s := splitEscrow(50000, 0, 0, 250)
	assert.Equal(t, int64(0), s.ArbFee)
	assert.Equal(t, int64(0), s.ClientShare)
	assert.Equal(t, int64(48750), s.AgentShare)
}

func TestSplitEscrow_RoundingGoesToAgent(t *testing.T) {
	// 101 без комиссий, 50/50: клиенту 50, исполнителю 51.
	s := splitEscrow(101, 50, 0, 0)
	assert.Equal(t, int64(50), s.ClientShare)
	assert.Equal(t, int64(51), s.AgentShare)
	assert.Equal(t, int64(101), s.ClientShare+s.AgentShare)
}

func TestSplitEscrow_FeesCapped(t *testing.T) {
	// Комиссии не могут превысить сам остаток.
	s := splitEscrow(10, 50, 50, 10000)
	assert.LessOrEqual(t, s.ArbFee+s.PlatformFee, int64(10))
	assert.GreaterOrEqual(t, s.AgentShare, int64(0))
	assert.GreaterOrEqual(t, s.ClientShare, int64(0))
}

func TestSplitEscrow_Zero(t *testing.T) {
	s := splitEscrow(0, 50, 5, 250)
	assert.Equal(t, int64(0), s.ArbFee+s.PlatformFee+s.ClientShare+s.AgentShare)
}
