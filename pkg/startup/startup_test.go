package startup

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDependency struct {
	name      string
	dependsOn []string
	startErr  error
	stopErr   error
	events    *[]string
}

func (d *fakeDependency) GetName() string     { return d.name }
func (d *fakeDependency) DependsOn() []string { return d.dependsOn }

func (d *fakeDependency) Start(ctx context.Context) error {
	*d.events = append(*d.events, "start:"+d.name)
	return d.startErr
}

func (d *fakeDependency) Stop(ctx context.Context) error {
	*d.events = append(*d.events, "stop:"+d.name)
	return d.stopErr
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestStartRespectsDependsOn(t *testing.T) {
	var events []string
	boot := NewStartup(testLogger(), 1)
	boot.AddDependency(&fakeDependency{name: "server", dependsOn: []string{"database"}, events: &events})
	boot.AddDependency(&fakeDependency{name: "database", events: &events})

	require.NoError(t, boot.Start(context.Background()))
	assert.Equal(t, []string{"start:database", "start:server"}, events)
}

func TestStartFailsOnUnknownDependency(t *testing.T) {
	var events []string
	boot := NewStartup(testLogger(), 1)
	boot.AddDependency(&fakeDependency{name: "server", dependsOn: []string{"ghost"}, events: &events})

	err := boot.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown dependency 'ghost'")
	assert.Empty(t, events)
}

func TestStartDetectsCycle(t *testing.T) {
	var events []string
	boot := NewStartup(testLogger(), 1)
	boot.AddDependency(&fakeDependency{name: "a", dependsOn: []string{"b"}, events: &events})
	boot.AddDependency(&fakeDependency{name: "b", dependsOn: []string{"a"}, events: &events})

	err := boot.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependency cycle")
}

func TestStartRetriesUpToMaxAttempts(t *testing.T) {
	var events []string
	boot := NewStartup(testLogger(), 2)
	boot.AddDependency(&fakeDependency{name: "flaky", startErr: errors.New("boom"), events: &events})

	err := boot.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Equal(t, []string{"start:flaky", "start:flaky"}, events)
}

func TestStopReversesRegistrationOrderAndSkipsUnstarted(t *testing.T) {
	var events []string
	boot := NewStartup(testLogger(), 1)
	boot.AddDependency(&fakeDependency{name: "database", events: &events})
	boot.AddDependency(&fakeDependency{name: "server", dependsOn: []string{"database"}, events: &events})
	require.NoError(t, boot.Start(context.Background()))

	events = nil
	require.NoError(t, boot.Stop(context.Background()))
	assert.Equal(t, []string{"stop:server", "stop:database"}, events)

	// A second stop is a no-op because nothing remains started.
	events = nil
	require.NoError(t, boot.Stop(context.Background()))
	assert.Empty(t, events)
}

func TestStopContinuesPastFailure(t *testing.T) {
	var events []string
	boot := NewStartup(testLogger(), 1)
	boot.AddDependency(&fakeDependency{name: "database", events: &events})
	boot.AddDependency(&fakeDependency{name: "server", stopErr: errors.New("hang"), events: &events})
	require.NoError(t, boot.Start(context.Background()))

	events = nil
	err := boot.Stop(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"stop:server", "stop:database"}, events)
}
