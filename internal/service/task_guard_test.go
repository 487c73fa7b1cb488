package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskGuard_OneRunPerName(t *testing.T) {
	var g taskGuard
	release := make(chan struct{})
	started := make(chan struct{})

	go g.run("rebuild-index", func() {
		close(started)
		<-release
	})
	<-started

	assert.False(t, g.run("rebuild-index", func() { t.Error("overlapping run") }))
	assert.True(t, g.run("seed", func() {}))
	assert.Equal(t, []string{"rebuild-index"}, g.active())

	close(release)
	require.NoError(t, g.wait(context.Background()))
	assert.Empty(t, g.active())
	assert.True(t, g.run("rebuild-index", func() {}))
}

func TestTaskGuard_WaitGivesUpWithContext(t *testing.T) {
	var g taskGuard
	release := make(chan struct{})
	started := make(chan struct{})
	go g.run("seed", func() {
		close(started)
		<-release
	})
	<-started
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, g.wait(ctx), context.DeadlineExceeded)
	assert.Equal(t, []string{"seed"}, g.active())
}

func TestTaskGuard_ReleasesAfterPanic(t *testing.T) {
	var g taskGuard
	assert.Panics(t, func() {
		g.run("seed", func() { panic("boom") })
	})
	assert.Empty(t, g.active())
	assert.True(t, g.run("seed", func() {}))
}
