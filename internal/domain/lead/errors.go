package lead

import "errors"

var (
	ErrLeadNotFound    = errors.New("lead: not found")
	ErrInvalidTenantID = errors.New("lead: invalid tenant ID")
	ErrInvalidName     = errors.New("lead: name cannot be empty")
)
