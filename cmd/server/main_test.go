package main

import (
	"os"
	"syscall"
	"testing"
	"time"
)

// TestRunFlagValidation exercises run()'s argument handling without
// actually binding a listener, matching cmd/enterprise/main_test.go's
// table-driven style for CLI entry points.
func TestRunFlagValidation(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
	}{
		{
			name:     "missing port fails",
			args:     []string{},
			wantCode: 1,
		},
		{
			name:     "help exits clean",
			args:     []string{"--help"},
			wantCode: 0,
		},
		{
			name:     "unknown flag fails",
			args:     []string{"--bogus"},
			wantCode: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := run(tt.args)
			if got != tt.wantCode {
				t.Errorf("run(%v) = %d, want %d", tt.args, got, tt.wantCode)
			}
		})
	}
}

// TestRunSigintExitsWithCodeOne exercises the actual SIGINT-shutdown path
// (spec.md Scenario 3): run() starts a real server, a SIGINT arrives mid-run,
// mainRunner.Run() returns Interrupted, and the process-level exit code is 1.
// Mirrors signalservice_test.go's self-signaling pattern, skipping if the
// sandbox won't allow it.
func TestRunSigintExitsWithCodeOne(t *testing.T) {
	if err := syscall.Kill(os.Getpid(), syscall.Signal(0)); err != nil {
		t.Skipf("cannot probe signal delivery in this sandbox: %v", err)
	}

	code := make(chan int, 1)
	go func() {
		code <- run([]string{"--port", "18099", "--runners", "0"})
	}()

	time.Sleep(50 * time.Millisecond)
	if err := syscall.Kill(os.Getpid(), syscall.SIGINT); err != nil {
		t.Skipf("cannot send signal in this sandbox: %v", err)
	}

	select {
	case got := <-code:
		if got != 1 {
			t.Fatalf("run() returned %d after SIGINT, want 1", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for run() to return after SIGINT")
	}
}

func TestWorkerRunnerName(t *testing.T) {
	tests := []struct {
		i    int
		want string
	}{
		{0, "worker-0"},
		{7, "worker-7"},
	}
	for _, tt := range tests {
		if got := workerRunnerName(tt.i); got != tt.want {
			t.Errorf("workerRunnerName(%d) = %q, want %q", tt.i, got, tt.want)
		}
	}
}
