package azure

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"github.com/minisc/minisc/internal/cloud"
)

var authCodes = map[string]bool{
	"AuthenticationFailed":       true,
	"InvalidAuthenticationToken": true,
	"ExpiredAuthenticationToken": true,
	"SubscriptionNotFound":       true,
}

var quotaOrPermissionCodes = map[string]bool{
	"AuthorizationFailed":             true,
	"LinkedAuthorizationFailed":       true,
	"OperationNotAllowed":             true,
	"SkuNotAvailable":                 true,
	"QuotaExceeded":                   true,
	"PublicIPCountLimitReached":       true,
	"AllocationFailed":                true,
	"ZonalAllocationFailed":           true,
	"RequestDisallowedByPolicy":       true,
	"MissingSubscriptionRegistration": true,
}

// retryableCodes clear once a dependent resource finishes deleting or a
// concurrent operation completes.
var retryableCodes = map[string]bool{
	"InUseNetworkSecurityGroupCannotBeDeleted": true,
	"InUseSubnetCannotBeDeleted":               true,
	"InUseRouteTableCannotBeDeleted":           true,
	"InUsePublicIpAddressCannotBeDeleted":      true,
	"NicInUse":                                 true,
	"AnotherOperationInProgress":               true,
	"RetryableError":                           true,
}

// classify maps an ARM error onto a cloud error kind.
func classify(err error) error {
	var authErr *azidentity.AuthenticationFailedError
	if errors.As(err, &authErr) {
		return cloud.ErrProviderAuth
	}

	var respErr *azcore.ResponseError
	if !errors.As(err, &respErr) {
		return nil
	}
	switch {
	case authCodes[respErr.ErrorCode], respErr.StatusCode == http.StatusUnauthorized:
		return cloud.ErrProviderAuth
	case quotaOrPermissionCodes[respErr.ErrorCode], strings.Contains(respErr.ErrorCode, "Quota"),
		respErr.StatusCode == http.StatusForbidden:
		return cloud.ErrQuotaOrPermission
	case respErr.StatusCode == http.StatusNotFound:
		return cloud.ErrNotFound
	}
	return nil
}

// wrap tags err with the ARM operation and its classification.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return cloud.NewOperationError(op, classify(err), err)
}

func isRetryable(err error) bool {
	var respErr *azcore.ResponseError
	if !errors.As(err, &respErr) {
		return false
	}
	return retryableCodes[respErr.ErrorCode] || respErr.StatusCode == http.StatusTooManyRequests
}
