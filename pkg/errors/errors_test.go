package errors_test

import (
	"errors"
	"fmt"
	"testing"

	pkgerrors "github.com/agentstation/membersync/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := pkgerrors.New("test error")
	assert.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestAPIError(t *testing.T) {
	t.Run("with status code", func(t *testing.T) {
		err := pkgerrors.NewAPIError("directory", "crud/users", 429, "slow down")
		assert.Contains(t, err.Error(), "directory")
		assert.Contains(t, err.Error(), "429")
		assert.Contains(t, err.Error(), "slow down")
	})

	t.Run("status classification", func(t *testing.T) {
		tests := []struct {
			status int
			target error
			want   bool
		}{
			{429, pkgerrors.ErrRateLimited, true},
			{500, pkgerrors.ErrUnavailable, true},
			{503, pkgerrors.ErrUnavailable, true},
			{401, pkgerrors.ErrUnauthorized, true},
			{403, pkgerrors.ErrUnauthorized, true},
			{400, pkgerrors.ErrUnavailable, false},
			{404, pkgerrors.ErrRateLimited, false},
		}
		for _, tt := range tests {
			t.Run(fmt.Sprintf("%d", tt.status), func(t *testing.T) {
				err := pkgerrors.NewAPIError("directory", "x", tt.status, "")
				assert.Equal(t, tt.want, errors.Is(err, tt.target))
			})
		}
	})

	t.Run("retryable", func(t *testing.T) {
		assert.True(t, pkgerrors.IsRetryable(pkgerrors.NewAPIError("directory", "x", 502, "")))
		assert.True(t, pkgerrors.IsRetryable(pkgerrors.NewAPIError("directory", "x", 429, "")))
		assert.False(t, pkgerrors.IsRetryable(pkgerrors.NewAPIError("directory", "x", 422, "")))
		assert.False(t, pkgerrors.IsRetryable(errors.New("boom")))
	})
}

func TestAuthError(t *testing.T) {
	err := &pkgerrors.AuthError{Endpoint: "auth/login", StatusCode: 401, Message: "bad password"}
	assert.Contains(t, err.Error(), "auth/login")
	assert.Contains(t, err.Error(), "401")
	assert.True(t, pkgerrors.IsUnauthorized(err))
	assert.False(t, errors.Is(err, pkgerrors.ErrFetch))
}

func TestFetchError(t *testing.T) {
	t.Run("non paginated", func(t *testing.T) {
		err := pkgerrors.NewFetchError("directory users", pkgerrors.NewAPIError("directory", "crud/users", 500, "down"))
		assert.Equal(t, -1, err.Page)
		assert.Equal(t, 500, err.StatusCode)
		assert.NotContains(t, err.Error(), "page")
		assert.True(t, errors.Is(err, pkgerrors.ErrFetch))
		assert.True(t, errors.Is(err, pkgerrors.ErrUnavailable))
	})

	t.Run("paginated", func(t *testing.T) {
		err := pkgerrors.NewPageFetchError("enrollment members", 3, errors.New("connection reset"))
		assert.Contains(t, err.Error(), "page 3")
		assert.Equal(t, 0, err.StatusCode)
		assert.False(t, pkgerrors.IsEndOfPages(err))
	})
}

func TestWriteError(t *testing.T) {
	base := pkgerrors.NewAPIError("directory", "crud/memberships", 409, "duplicate")
	err := pkgerrors.NewWriteError("add-membership", "user 42", base)

	assert.Equal(t, "add-membership", err.Operation)
	assert.Equal(t, "user 42", err.Target)
	assert.Equal(t, 409, err.StatusCode)
	assert.True(t, errors.Is(err, pkgerrors.ErrWrite))

	var apiErr *pkgerrors.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "duplicate", apiErr.Message)
}

func TestConflictError(t *testing.T) {
	err := &pkgerrors.ConflictError{Key: "email:a@x.edu", Candidates: []string{"1", "2"}}
	assert.Contains(t, err.Error(), "2 records")
	assert.True(t, errors.Is(err, pkgerrors.ErrAmbiguousMatch))
}

func TestValidationError(t *testing.T) {
	t.Run("with field", func(t *testing.T) {
		err := pkgerrors.NewValidationError("chunkSize", 0, "must be positive")
		assert.Equal(t, "validation failed for field chunkSize: must be positive", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrInvalidInput))
	})

	t.Run("without field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{Message: "invalid"}
		assert.Equal(t, "validation failed: invalid", err.Error())
	})
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", errors.New("boom"), 1},
		{"config", pkgerrors.NewConfigError("erp.key", "required", nil), 2},
		{"login", pkgerrors.InPhase(pkgerrors.PhaseLogin, &pkgerrors.AuthError{}), 3},
		{"directory", pkgerrors.InPhase(pkgerrors.PhaseDirectory, errors.New("x")), 4},
		{"enrollment", pkgerrors.InPhase(pkgerrors.PhaseEnrollment, errors.New("x")), 5},
		{"plan", pkgerrors.InPhase(pkgerrors.PhasePlan, errors.New("x")), 6},
		{"users", pkgerrors.InPhase(pkgerrors.PhaseUsers, errors.New("x")), 7},
		{"membership", pkgerrors.InPhase(pkgerrors.PhaseMembership, errors.New("x")), 8},
		{"wrapped phase", fmt.Errorf("run: %w", pkgerrors.InPhase(pkgerrors.PhaseLogin, errors.New("x"))), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pkgerrors.ExitCode(tt.err))
		})
	}
}

func TestInPhase(t *testing.T) {
	assert.NoError(t, pkgerrors.InPhase(pkgerrors.PhaseUsers, nil))

	base := pkgerrors.NewWriteError("create-user", "a@x.edu", errors.New("x"))
	err := pkgerrors.InPhase(pkgerrors.PhaseUsers, base)
	assert.Contains(t, err.Error(), "users phase failed")
	assert.True(t, errors.Is(err, pkgerrors.ErrWrite))
}

func TestWrapParse(t *testing.T) {
	assert.NoError(t, pkgerrors.WrapParse("json", "x", nil))
	err := pkgerrors.WrapParse("json", "crud/users", errors.New("unexpected EOF"))
	var parseErr *pkgerrors.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "json", parseErr.Format)
}
