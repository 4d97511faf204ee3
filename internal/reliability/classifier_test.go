package reliability

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsRetryableHTTPStatus(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{200, false},
		{400, false},
		{404, false},
		{429, true},
		{500, true},
		{503, true},
	}
	for _, tc := range cases {
		got := IsRetryableHTTPStatus(tc.code)
		if got != tc.want {
			t.Fatalf("IsRetryableHTTPStatus(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("bad schema"), false},
		{"canceled", fmt.Errorf("classify: %w", context.Canceled), false},
		{"deadline", fmt.Errorf("classify: %w", context.DeadlineExceeded), true},
		{"wrapped 503", fmt.Errorf("classify: %w", &StatusError{Status: 503}), true},
		{"wrapped 401", fmt.Errorf("classify: %w", &StatusError{Status: 401, Body: "no key"}), false},
	}
	for _, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Fatalf("%s: IsRetryable(%v) = %v, want %v", tc.name, tc.err, got, tc.want)
		}
	}
}

func TestStatusErrorMessage(t *testing.T) {
	err := &StatusError{Status: 503, Body: "overloaded"}
	if got, want := err.Error(), "upstream http status 503: overloaded"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}
