package queue

import "testing"

func TestEnqueueOptions_WithDefaults_FillsZeroFields(t *testing.T) {
	opts := EnqueueOptions{}.WithDefaults()
	if opts.Attempts != DefaultAttempts {
		t.Errorf("got Attempts %d, want %d", opts.Attempts, DefaultAttempts)
	}
	if opts.BackoffInitialMs != DefaultBackoffInitialMs {
		t.Errorf("got BackoffInitialMs %d, want %d", opts.BackoffInitialMs, DefaultBackoffInitialMs)
	}
}

func TestEnqueueOptions_WithDefaults_PreservesExplicitValues(t *testing.T) {
	opts := EnqueueOptions{Attempts: 7, BackoffInitialMs: 500}.WithDefaults()
	if opts.Attempts != 7 || opts.BackoffInitialMs != 500 {
		t.Errorf("got %+v, want Attempts=7 BackoffInitialMs=500", opts)
	}
}

func TestEnqueueOptions_WithDefaults_NegativeTreatedAsZero(t *testing.T) {
	opts := EnqueueOptions{Attempts: -1, BackoffInitialMs: -1}.WithDefaults()
	if opts.Attempts != DefaultAttempts || opts.BackoffInitialMs != DefaultBackoffInitialMs {
		t.Errorf("got %+v, want defaults", opts)
	}
}
