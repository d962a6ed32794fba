package errors

import (
	"database/sql"
	"fmt"
	"testing"
)

func TestBotError_IsMatchesByCode(t *testing.T) {
	err := ErrConflict.WithError(sql.ErrTxDone).WithContext(map[string]int64{"slot_id": 7})

	if !Is(err, ErrConflict) {
		t.Fatalf("expected copy of ErrConflict to match ErrConflict")
	}
	if Is(err, ErrNotFound) {
		t.Errorf("conflict must not match not found")
	}
	if !Is(err, sql.ErrTxDone) {
		t.Errorf("underlying error should stay reachable through Unwrap")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain", fmt.Errorf("boom"), CodeInternal},
		{"direct", ErrSlotsGone, CodeNotFound},
		{"wrapped", fmt.Errorf("reserve: %w", ErrSlotOccupied), CodeConflict},
		{"validation helper", Validation("bad price %d", -1), CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBotError_ErrorString(t *testing.T) {
	err := Wrap(fmt.Errorf("disk full"), CodeInternal, "failed to save")
	if got, want := err.Error(), "INTERNAL: failed to save: disk full"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	if got, want := ErrForbidden.Error(), "FORBIDDEN: недостаточно прав"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
