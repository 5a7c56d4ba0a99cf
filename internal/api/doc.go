// Package api implements the HTTP interface: certificate submission, status
// polling, cancellation, and the health and metrics endpoints. Handlers
// translate between JSON DTOs and the service layer, and map domain errors
// to HTTP status codes with sanitized messages.
package api
