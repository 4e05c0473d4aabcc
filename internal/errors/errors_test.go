package gerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"invalid", fmt.Errorf("%w: start_date", ErrInvalidRequest), http.StatusBadRequest},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized},
		{"forbidden", fmt.Errorf("company 7: %w", ErrForbidden), http.StatusForbidden},
		{"fetch", fmt.Errorf("%w: page 3: %w", ErrDataFetch, errors.New("conn reset")), http.StatusBadGateway},
		{"rate limited", fmt.Errorf("%w: login", ErrTooManyRequests), http.StatusTooManyRequests},
		{"not configured", fmt.Errorf("bucket: %w", ErrNotConfigured), http.StatusServiceUnavailable},
		{"not found", fmt.Errorf("user: %w", ErrNotFound), http.StatusNotFound},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
