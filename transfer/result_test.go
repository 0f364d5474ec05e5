package transfer

import (
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestResultString(t *testing.T) {
	base := Result{
		ID:       uuid.MustParse("0123abcd-0000-4000-8000-000000000000"),
		Peer:     netip.MustParseAddrPort("127.0.0.1:4000"),
		Name:     "notes.txt",
		Bytes:    1234,
		Duration: 1500 * time.Millisecond,
	}

	tests := []struct {
		outcome Outcome
		label   string
		want    string
	}{
		{Completed, "completed", "transfer completed with 1234 bytes in 1.5s"},
		{ResourceNotFound, "resource not found", "resource not found"},
		{Aborted, "aborted", "transfer aborted after 1234 bytes"},
		{Outcome(9), "Outcome(9)", "transfer aborted after 1234 bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			if got := tt.outcome.String(); got != tt.label {
				t.Errorf("String() = %q, expected %q", got, tt.label)
			}

			r := base
			r.Outcome = tt.outcome
			got := r.String()
			if !strings.HasPrefix(got, `0123abcd "notes.txt" with 127.0.0.1:4000: `) || !strings.HasSuffix(got, tt.want) {
				t.Errorf("Result.String() = %q, expected suffix %q", got, tt.want)
			}
		})
	}
}
