//go:build !integration

package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestGatewayError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"404 is not found", &GatewayError{Op: "status", StatusCode: 404}, ErrNotFound, true},
		{"wrapped 404 is not found", fmt.Errorf("cancel job 1: %w", &GatewayError{Op: "cancel", StatusCode: 404}), ErrNotFound, true},
		{"500 is not not-found", &GatewayError{Op: "status", StatusCode: 500}, ErrNotFound, false},
		{"409 on cancel is not cancellable", &GatewayError{Op: "cancel", StatusCode: 409}, ErrNotCancellable, true},
		{"409 on submit is something else", &GatewayError{Op: "submit", StatusCode: 409}, ErrNotCancellable, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGatewayError_Error(t *testing.T) {
	e := &GatewayError{Op: "submit", StatusCode: 400, Message: "Invalid URL"}
	if got := e.Error(); got != "submit: server returned 400: Invalid URL" {
		t.Errorf("unexpected message %q", got)
	}
	e.Message = ""
	if got := e.Error(); got != "submit: server returned 400" {
		t.Errorf("unexpected message %q", got)
	}
}
