package server

import (
	"context"
	"errors"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justinpbarnett/devwatch/internal/metrics"
	"github.com/justinpbarnett/devwatch/internal/runtime/runtimetest"
)

func TestWaitNoDevServer(t *testing.T) {
	reg, _ := newTestRegistry(t)

	res := reg.WaitForBuild(context.Background(), "missing", time.Second)

	assert.Equal(t, WaitNoDevServerFound, res.Status)
	assert.Nil(t, res.Logs)
}

func TestWaitTimeoutShorterThanDelay(t *testing.T) {
	host := runtimetest.NewFakeHost()
	reg := NewRegistry(host, Options{WatchDelay: 50 * time.Millisecond})
	defer reg.StopAll()
	reg.Start(context.Background(), "")

	res := reg.WaitForBuild(context.Background(), "", 10*time.Millisecond)

	assert.Equal(t, WaitTimeout, res.Status)
	assert.Nil(t, res.Logs)
}

func TestWaitFullBufferWhenNoStartMarker(t *testing.T) {
	reg, host := newTestRegistry(t)
	reg.Start(context.Background(), "")

	lines := []string{
		"... building ...",
		"✔ Changes detected. Rebuilding...",
		"... more logs ...",
		"Application bundle generation complete.",
	}
	host.Last().WriteStdout(lines...)
	ds := reg.Get("")
	require.Eventually(t, func() bool { return len(ds.Logs()) == len(lines) }, waitFor, tick)

	res := reg.WaitForBuild(context.Background(), "", time.Second)

	assert.Equal(t, WaitSuccess, res.Status)
	assert.Equal(t, lines, res.Logs)
}

func TestWaitFailureWindowStartsAtMarker(t *testing.T) {
	reg, host := newTestRegistry(t)
	reg.Start(context.Background(), "app")
	fp := host.Last()

	fp.WriteStdout("Watch mode enabled. Watching for file changes...")
	ds := reg.Get("app")
	require.Eventually(t, func() bool { return !ds.IsBuilding() }, waitFor, tick)

	fp.WriteStdout("❯ Changes detected. Rebuilding...", "Application bundle generation failed.")

	res := reg.WaitForBuild(context.Background(), "app", time.Second)

	assert.Equal(t, WaitFailure, res.Status)
	assert.Equal(t, []string{
		"❯ Changes detected. Rebuilding...",
		"Application bundle generation failed.",
	}, res.Logs)
}

func TestWaitBlocksUntilBuildSettles(t *testing.T) {
	reg, host := newTestRegistry(t)
	reg.Start(context.Background(), "app")
	fp := host.Last()

	done := make(chan WaitResult, 1)
	go func() { done <- reg.WaitForBuild(context.Background(), "app", 5*time.Second) }()

	select {
	case <-done:
		t.Fatal("wait returned while still building")
	case <-time.After(50 * time.Millisecond):
	}

	fp.WriteStdout("Application bundle generation complete.")

	select {
	case res := <-done:
		assert.Equal(t, WaitSuccess, res.Status)
		assert.Equal(t, []string{"Application bundle generation complete."}, res.Logs)
	case <-time.After(waitFor):
		t.Fatal("wait did not return after build settled")
	}
}

func TestWaitUnknownWhenProcessDiesMidBuild(t *testing.T) {
	reg, host := newTestRegistry(t)
	reg.Start(context.Background(), "app")
	fp := host.Last()

	done := make(chan WaitResult, 1)
	go func() { done <- reg.WaitForBuild(context.Background(), "app", 5*time.Second) }()
	time.Sleep(5 * time.Millisecond)

	fp.WriteStdout("Error: port in use")
	fp.Exit(errors.New("exit status 1"))

	select {
	case res := <-done:
		assert.Equal(t, WaitUnknown, res.Status)
		assert.Equal(t, []string{"Error: port in use"}, res.Logs)
	case <-time.After(waitFor):
		t.Fatal("wait did not return after exit")
	}
}

func TestWaitAfterCrashFindsNoServer(t *testing.T) {
	reg, host := newTestRegistry(t)
	reg.Start(context.Background(), "app")

	host.Last().Exit(errors.New("exit status 1"))

	require.Eventually(t, func() bool { return reg.Get("app") == nil }, waitFor, tick)
	assert.Equal(t, WaitNoDevServerFound, reg.WaitForBuild(context.Background(), "app", time.Second).Status)
}

func TestWaitContextCancelled(t *testing.T) {
	reg, _ := newTestRegistry(t)
	reg.Start(context.Background(), "app")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := reg.WaitForBuild(ctx, "app", time.Minute)
	assert.Equal(t, WaitTimeout, res.Status)
}

func TestWaitDefaultTimeout(t *testing.T) {
	host := runtimetest.NewFakeHost()
	reg := NewRegistry(host, Options{WatchDelay: 5 * time.Millisecond, DefaultTimeout: 30 * time.Millisecond})
	defer reg.StopAll()
	reg.Start(context.Background(), "app")

	began := time.Now()
	res := reg.WaitForBuild(context.Background(), "app", 0)

	assert.Equal(t, WaitTimeout, res.Status)
	assert.Less(t, time.Since(began), time.Second)
}

func TestConcurrentWaitsOnSameKey(t *testing.T) {
	reg, host := newTestRegistry(t)
	reg.Start(context.Background(), "app")

	results := make(chan WaitResult, 3)
	for i := 0; i < 3; i++ {
		go func() { results <- reg.WaitForBuild(context.Background(), "app", 5*time.Second) }()
	}
	host.Last().WriteStdout("Application bundle generation complete.")

	for i := 0; i < 3; i++ {
		select {
		case res := <-results:
			assert.Equal(t, WaitSuccess, res.Status)
		case <-time.After(waitFor):
			t.Fatal("concurrent wait did not return")
		}
	}
}

func TestWaitRecordsMetrics(t *testing.T) {
	promReg := prom.NewRegistry()
	rec := metrics.NewPrometheusRecorder(promReg)
	host := runtimetest.NewFakeHost()
	reg := NewRegistry(host, Options{WatchDelay: 5 * time.Millisecond, Recorder: rec})
	defer reg.StopAll()

	reg.WaitForBuild(context.Background(), "missing", time.Second)
	reg.Start(context.Background(), "app")

	n, err := testutil.GatherAndCount(promReg, "devwatch_wait_results_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1.0, gaugeValue(t, promReg, "devwatch_devservers_running"))
}

func gaugeValue(t *testing.T, reg *prom.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}
