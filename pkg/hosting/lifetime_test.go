package hosting

import (
	"testing"

	"github.com/JailtonJunior94/jobkit-go/pkg/observability/fake"
	"github.com/stretchr/testify/assert"
)

func TestLifetime_StoppingRunsActionsInOrderOnce(t *testing.T) {
	lifetime := NewLifetime(fake.NewFakeLogger())

	var order []int
	lifetime.ApplicationStopping().Register(func() { order = append(order, 1) })
	lifetime.ApplicationStopping().Register(func() { order = append(order, 2) })
	lifetime.ApplicationStopping().Register(func() { order = append(order, 3) })

	lifetime.StopApplication()
	lifetime.StopApplication()

	assert.Equal(t, []int{1, 2, 3}, order)

	select {
	case <-lifetime.ApplicationStopping().Done():
	default:
		t.Fatal("expected Done to be closed after firing")
	}
}

func TestLifetime_RegisterAfterFireRunsImmediately(t *testing.T) {
	lifetime := NewLifetime(fake.NewFakeLogger())
	lifetime.StopApplication()

	called := false
	lifetime.ApplicationStopping().Register(func() { called = true })

	assert.True(t, called)
}

func TestLifetime_PanickingActionDoesNotStopOthers(t *testing.T) {
	logger := fake.NewFakeLogger()
	lifetime := NewLifetime(logger)

	secondRan := false
	lifetime.ApplicationStopped().Register(func() { panic("boom") })
	lifetime.ApplicationStopped().Register(func() { secondRan = true })

	lifetime.NotifyStopped()

	assert.True(t, secondRan)
	assert.True(t, logger.HasMessage("lifecycle action failed"))
}

func TestLifetime_PanickingLateRegistrationIsReported(t *testing.T) {
	logger := fake.NewFakeLogger()
	lifetime := NewLifetime(logger)
	lifetime.StopApplication()

	assert.NotPanics(t, func() {
		lifetime.ApplicationStopping().Register(func() { panic("late") })
	})

	entries := logger.GetEntries()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "lifecycle action failed", entries[0].Message)
		event, _ := entries[0].Field("event")
		assert.Equal(t, "stopping", event)
	}
}

func TestLifetime_EventsAreIndependent(t *testing.T) {
	lifetime := NewLifetime(fake.NewFakeLogger())

	stoppedRan := false
	lifetime.ApplicationStopped().Register(func() { stoppedRan = true })

	lifetime.StopApplication()
	assert.False(t, stoppedRan)

	lifetime.NotifyStopped()
	assert.True(t, stoppedRan)
}
