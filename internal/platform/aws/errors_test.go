package aws

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/minisc/minisc/internal/cloud"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code string
		want error
	}{
		{"AuthFailure", cloud.ErrProviderAuth},
		{"ExpiredToken", cloud.ErrProviderAuth},
		{"UnauthorizedOperation", cloud.ErrQuotaOrPermission},
		{"InstanceLimitExceeded", cloud.ErrQuotaOrPermission},
		{"VpcLimitExceeded", cloud.ErrQuotaOrPermission},
		{"InvalidVpcID.NotFound", cloud.ErrNotFound},
		{"Gateway.NotAttached", cloud.ErrNotFound},
		{"DependencyViolation", nil},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, classify(apiError(tt.code)))
		})
	}
}

func TestClassify_NonAPIError(t *testing.T) {
	t.Parallel()
	assert.Nil(t, classify(errors.New("dial tcp: timeout")))
}

func TestWrap(t *testing.T) {
	t.Parallel()

	assert.Nil(t, wrap("DeleteVpc", nil))

	err := wrap("DeleteVpc", fmt.Errorf("call: %w", apiError("InvalidVpcID.NotFound")))
	assert.True(t, errors.Is(err, cloud.ErrNotFound))
	assert.Equal(t, "DeleteVpc", cloud.OperationName(err))
}

func TestRetryableCodes(t *testing.T) {
	t.Parallel()

	assert.True(t, isDependencyViolation(apiError("DependencyViolation")))
	assert.True(t, isDependencyViolation(apiError("InvalidGroup.InUse")))
	assert.False(t, isDependencyViolation(apiError("InvalidGroup.NotFound")))

	assert.True(t, isDuplicate(apiError("InvalidPermission.Duplicate")))
	assert.True(t, isDuplicate(apiError("RouteAlreadyExists")))
	assert.False(t, isDuplicate(errors.New("other")))
}
