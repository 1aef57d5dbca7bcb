package request

import (
	"net/http"
	"testing"
	"time"
)

func TestBackoffState_Accumulates(t *testing.T) {
	tests := []struct {
		name       string
		retryAfter []string
		want       []time.Duration
	}{
		{
			name:       "Retry-After present",
			retryAfter: []string{"1", "1"},
			want:       []time.Duration{1700 * time.Millisecond, 3200 * time.Millisecond},
		},
		{
			name:       "No header",
			retryAfter: []string{"", "", ""},
			want:       []time.Duration{700 * time.Millisecond, 1200 * time.Millisecond, 1700 * time.Millisecond},
		},
		{
			name:       "Mixed",
			retryAfter: []string{"2", ""},
			want:       []time.Duration{2700 * time.Millisecond, 3200 * time.Millisecond},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultBackoff().start()
			for i, ra := range tt.retryAfter {
				h := http.Header{}
				if ra != "" {
					h.Set("Retry-After", ra)
				}
				if got := s.observe(h); got != tt.want[i] {
					t.Errorf("wait %d = %v, want %v", i+1, got, tt.want[i])
				}
			}
		})
	}
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 0},
		{"3", 3 * time.Second},
		{"0.5", 500 * time.Millisecond},
		{"Wed, 21 Oct 2015 07:28:00 GMT", 0},
		{"-4", 0},
	}
	for _, tt := range tests {
		h := http.Header{}
		if tt.value != "" {
			h.Set("Retry-After", tt.value)
		}
		if got := retryAfter(h); got != tt.want {
			t.Errorf("retryAfter(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
