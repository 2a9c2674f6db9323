package aws

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"

	"github.com/minisc/minisc/internal/cloud"
)

var authCodes = map[string]bool{
	"AuthFailure":           true,
	"InvalidClientTokenId":  true,
	"SignatureDoesNotMatch": true,
	"ExpiredToken":          true,
	"OptInRequired":         true,
}

var quotaOrPermissionCodes = map[string]bool{
	"UnauthorizedOperation":        true,
	"AccessDenied":                 true,
	"InsufficientInstanceCapacity": true,
	"VcpuLimitExceeded":            true,
	"RequestLimitExceeded":         true,
}

// classify maps an EC2 error code onto a cloud error kind.
func classify(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return nil
	}
	code := apiErr.ErrorCode()
	switch {
	case authCodes[code]:
		return cloud.ErrProviderAuth
	case quotaOrPermissionCodes[code], strings.HasSuffix(code, "LimitExceeded"):
		return cloud.ErrQuotaOrPermission
	case strings.HasSuffix(code, ".NotFound"), code == "Gateway.NotAttached":
		return cloud.ErrNotFound
	}
	return nil
}

// wrap tags err with the EC2 operation and its classification.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return cloud.NewOperationError(op, classify(err), err)
}

func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// isDependencyViolation reports errors that clear once dependent resources
// finish deleting.
func isDependencyViolation(err error) bool {
	code := errorCode(err)
	return code == "DependencyViolation" || code == "InvalidGroup.InUse"
}

func isDuplicate(err error) bool {
	code := errorCode(err)
	return code == "InvalidPermission.Duplicate" || code == "RouteAlreadyExists" || code == "Resource.AlreadyAssociated"
}
