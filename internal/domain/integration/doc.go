// Package integration contains the Integration bounded context.
// It describes third-party systems that push records into the CRM through
// the inbound webhook.
//
// Key concepts:
//   - Config: an integration's token, status and the defaults applied to
//     leads it creates
//   - FieldMapping: routes one payload field into a lead field
//   - Log: the immutable audit entry written for every inbound call
//
// Configs and mappings are authored elsewhere; this context only reads them.
// Log entries are append-only.
package integration
