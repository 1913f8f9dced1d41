package reports

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusSubmitted, StatusInReview))
	assert.True(t, CanTransition(StatusInReview, StatusResolved))
	assert.True(t, CanTransition(StatusInReview, StatusSubmitted))

	assert.False(t, CanTransition(StatusSubmitted, StatusResolved))
	assert.False(t, CanTransition(StatusResolved, StatusInReview))
	assert.False(t, CanTransition(StatusResolved, StatusSubmitted))
	assert.False(t, CanTransition(StatusSubmitted, StatusSubmitted))
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusSubmitted, StatusInReview, StatusResolved} {
		assert.True(t, s.Valid())
	}
	assert.False(t, Status("archived").Valid())
	assert.False(t, Status("").Valid())
}
