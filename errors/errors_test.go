package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKind_String(t *testing.T) {
	tests := []struct {
		kind     ErrorKind
		expected string
	}{
		{ErrInvalidParameter, "invalid parameter"},
		{ErrRangeInvalid, "range invalid"},
		{ErrNotImplemented, "not implemented"},
		{ErrInvalidState, "invalid state"},
		{ErrReader, "reader error"},
		{ErrInjection, "injection error"},
		{ErrReplay, "replay error"},
		{ErrInternal, "internal error"},
		{ErrorKind(999), "unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.expected {
				t.Errorf("ErrorKind.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSchedulerError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *SchedulerError
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "<nil>",
		},
		{
			name:     "kind only",
			err:      &SchedulerError{Kind: ErrInvalidParameter, Output: -1},
			expected: "invalid parameter",
		},
		{
			name:     "detail",
			err:      &SchedulerError{Kind: ErrReplay, Detail: "truncated component", Output: -1},
			expected: "truncated component",
		},
		{
			name:     "op and detail",
			err:      &SchedulerError{Op: "load schedule", Kind: ErrReplay, Detail: "bad footer", Output: -1},
			expected: "load schedule: bad footer",
		},
		{
			name:     "output prefix",
			err:      &SchedulerError{Output: 2, Op: "next_record", Kind: ErrReader, Detail: "reader failed"},
			expected: "output 2: next_record: reader failed",
		},
		{
			name: "input prefix",
			err: &SchedulerError{
				Output: -1, Input: 42, Op: "init", Kind: ErrReader, Detail: "reader failed to initialize",
			},
			expected: "input 42: init: reader failed to initialize",
		},
		{
			name: "wrapped cause",
			err: &SchedulerError{
				Output: -1, Op: "pop", Kind: ErrReader,
				Detail: "reader failed", Err: fmt.Errorf("short read"),
			},
			expected: "pop: reader failed: short read",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSchedulerError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("underlying")
	err := Wrap(cause, ErrReader, "pop")
	if got := errors.Unwrap(err); got != cause {
		t.Errorf("Unwrap() = %v, want %v", got, cause)
	}

	var nilErr *SchedulerError
	if got := nilErr.Unwrap(); got != nil {
		t.Errorf("nil Unwrap() = %v, want nil", got)
	}
}

func TestSchedulerError_Is(t *testing.T) {
	err := New(ErrInvalidParameter, "new", "conflicting regions")

	if !errors.Is(err, ErrConflictingRegions) {
		t.Error("errors matching on kind should succeed for the same kind")
	}
	if errors.Is(err, ErrReplayTruncated) {
		t.Error("errors of different kinds should not match")
	}
}

func TestSchedulerError_As(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", WrapWithOutput(nil, ErrInjection, "splice", 3))

	var serr *SchedulerError
	if !errors.As(wrapped, &serr) {
		t.Fatal("errors.As should find the SchedulerError through wrapping")
	}
	if serr.Kind != ErrInjection {
		t.Errorf("Kind = %v, want %v", serr.Kind, ErrInjection)
	}
	if serr.Output != 3 {
		t.Errorf("Output = %d, want 3", serr.Output)
	}
}

func TestIsKind(t *testing.T) {
	err := WrapWithDetail(nil, ErrNotImplemented, "init", "online with core-sharded output")

	if !IsKind(err, ErrNotImplemented) {
		t.Error("IsKind should match the error's kind")
	}
	if IsKind(err, ErrReplay) {
		t.Error("IsKind should reject a different kind")
	}
	if IsKind(fmt.Errorf("plain"), ErrNotImplemented) {
		t.Error("IsKind should reject non-scheduler errors")
	}
}

func TestGetKind(t *testing.T) {
	kind, ok := GetKind(ErrEmptyWorkload)
	if !ok || kind != ErrInvalidParameter {
		t.Errorf("GetKind(ErrEmptyWorkload) = %v, %v; want %v, true", kind, ok, ErrInvalidParameter)
	}

	if _, ok := GetKind(fmt.Errorf("plain")); ok {
		t.Error("GetKind should report false for non-scheduler errors")
	}
}

func TestWrapHelpers(t *testing.T) {
	cause := fmt.Errorf("boom")

	if err := Wrap(cause, ErrReader, "pop"); err.Op != "pop" || err.Err != cause {
		t.Errorf("Wrap populated %+v", err)
	}
	if err := WrapWithOutput(cause, ErrReader, "pop", 1); err.Output != 1 {
		t.Errorf("WrapWithOutput Output = %d, want 1", err.Output)
	}
	if err := WrapWithInput(cause, ErrReader, "init", 7); err.Input != 7 {
		t.Errorf("WrapWithInput Input = %d, want 7", err.Input)
	}
	if err := WrapWithDetail(cause, ErrReader, "init", "d"); err.Detail != "d" {
		t.Errorf("WrapWithDetail Detail = %q, want %q", err.Detail, "d")
	}
}

func TestSentinelsCarryExpectedKinds(t *testing.T) {
	tests := []struct {
		err  *SchedulerError
		kind ErrorKind
	}{
		{ErrEmptyWorkload, ErrInvalidParameter},
		{ErrConflictingRegions, ErrInvalidParameter},
		{ErrOnlyThreadsDisjoint, ErrInvalidParameter},
		{ErrOnlyShardsOutOfRange, ErrInvalidParameter},
		{ErrMalformedSchedule, ErrInvalidParameter},
		{ErrDuplicateTraceStart, ErrInvalidParameter},
		{ErrROIBeyondEOF, ErrRangeInvalid},
		{ErrOnlineCoreSharded, ErrNotImplemented},
		{ErrUnreadNotAvailable, ErrInvalidState},
		{ErrSpeculationAfterUnread, ErrInvalidState},
		{ErrNoSpeculationFrame, ErrInvalidState},
		{ErrUnmatchedContextSwitch, ErrInjection},
		{ErrUnmatchedSyscallTrace, ErrInjection},
		{ErrReplayDiverged, ErrReplay},
		{ErrReplayTruncated, ErrReplay},
		{ErrReaderFailed, ErrReader},
	}

	for _, tt := range tests {
		if tt.err.Kind != tt.kind {
			t.Errorf("%q: Kind = %v, want %v", tt.err.Detail, tt.err.Kind, tt.kind)
		}
	}
}
