package integration

import "errors"

var (
	ErrConfigNotFound       = errors.New("integration: config not found")
	ErrInvalidTenantID      = errors.New("integration: invalid tenant ID")
	ErrInvalidToken         = errors.New("integration: invalid token")
	ErrInvalidIntegrationID = errors.New("integration: invalid integration ID")
	ErrInvalidFieldMapping  = errors.New("integration: invalid field mapping")
)
