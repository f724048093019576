package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{name: "nil", err: nil, want: CategoryNoError},
		{name: "plain", err: errors.New("boom"), want: CategoryGeneralError},
		{name: "bad request", err: BadRequestError(nil, "bad"), want: CategoryDataError},
		{name: "wrapped not found", err: fmt.Errorf("get: %w", ResourceNotFoundError(nil, "missing")), want: CategoryResourceNotFound},
		{name: "dependency", err: DependencyError(nil, "bridge"), want: CategoryDependencyFailure},
		{name: "recovering", err: RecoveringError(nil, "busy"), want: CategoryRecovering},
		{name: "timeout", err: TimeoutError(nil, "slow"), want: CategoryConnectionTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CategoryOf(tt.err))
		})
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: BadRequestError(nil, "bad"), want: http.StatusBadRequest},
		{err: UnAuthorizedError(nil, "no token"), want: http.StatusUnauthorized},
		{err: ResourceNotFoundError(nil, "missing"), want: http.StatusNotFound},
		{err: DependencyError(nil, "bridge"), want: http.StatusBadGateway},
		{err: RecoveringError(nil, "busy"), want: http.StatusServiceUnavailable},
		{err: TimeoutError(nil, "slow"), want: http.StatusGatewayTimeout},
		{err: GeneralError(nil), want: http.StatusInternalServerError},
		{err: &ServiceError{Category: CategoryForbidden}, want: http.StatusForbidden},
		{err: &ServiceError{Category: CategoryNotSupported}, want: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		var svcErr *ServiceError
		if assert.True(t, errors.As(tt.err, &svcErr)) {
			assert.Equal(t, tt.want, svcErr.StatusCode(), svcErr.Category.String())
		}
	}
}

func TestIsInternalError(t *testing.T) {
	assert.False(t, IsInternalError(BadRequestError(nil, "bad")))
	assert.False(t, IsInternalError(ResourceNotFoundError(nil, "missing")))
	assert.True(t, IsInternalError(DependencyError(nil, "bridge")))
	assert.True(t, IsInternalError(errors.New("plain")))
	assert.True(t, Is(TimeoutError(nil, "slow"), CategoryConnectionTimeout))
}
