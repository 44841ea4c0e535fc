package models

import "testing"

func TestBatchOutcome_Message(t *testing.T) {
	tests := []struct {
		name    string
		outcome BatchOutcome
		want    BatchMessage
	}{
		{"one success", BatchOutcome{Succeeded: 1}, BatchMessage{MessageSuccess, "Successfully uploaded 1 file!"}},
		{"many successes", BatchOutcome{Succeeded: 3}, BatchMessage{MessageSuccess, "Successfully uploaded 3 files!"}},
		{"mixed", BatchOutcome{Succeeded: 1, Failed: 1}, BatchMessage{MessageError, "Uploaded 1 file, 1 failed"}},
		{"mixed plural", BatchOutcome{Succeeded: 2, Failed: 3}, BatchMessage{MessageError, "Uploaded 2 files, 3 failed"}},
		{"all failed", BatchOutcome{Failed: 1}, BatchMessage{MessageError, "Failed to upload 1 file"}},
		{"all failed plural", BatchOutcome{Failed: 4}, BatchMessage{MessageError, "Failed to upload 4 files"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.outcome.Message(); got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestProgressStatus_IsTerminal(t *testing.T) {
	for status, want := range map[ProgressStatus]bool{
		ProgressPending:   false,
		ProgressUploading: false,
		ProgressSuccess:   true,
		ProgressError:     true,
	} {
		if got := status.IsTerminal(); got != want {
			t.Errorf("%s: expected %v, got %v", status, want, got)
		}
	}
}
