// Package errors defines domain-level errors used throughout the application.
// These errors represent registry, health and failover failures. Most of them are contained at the point
// where they occur (logged and counted) and only a few ever reach the API boundary, where they are mapped
// to appropriate HTTP status codes.
//
// NOTE: Important for developers
// When adding a new error here, you MUST consider how it should be handled when returned from API endpoints.
//
// Unmapped errors will default to HTTP 500 Internal Server Error.
//
// Don't forget to:
// 1. Add your error to mapError (internal/daemon/api_server.go)
// 2. Add a test case to TestMapError (internal/daemon/api_server_test.go)
package errors

import (
	"errors"
)

var (
	// ErrRegistration indicates that a server descriptor is structurally invalid (e.g. missing name or transport).
	// Registration returns false for this condition rather than surfacing the error.
	// Recommended to map to HTTP 400 Bad Request.
	ErrRegistration = errors.New("invalid server descriptor")

	// ErrDiscovery indicates that a single discovery source failed.
	// The source contributes nothing to the discovery round, other sources are unaffected.
	ErrDiscovery = errors.New("discovery source failed")

	// ErrHealthCheck indicates that a health probe failed or returned an error.
	// It is classified as a failed check and never propagated past the monitor.
	ErrHealthCheck = errors.New("health check failed")

	// ErrFailoverAction indicates that a failover action could not be completed,
	// for example when no healthy candidate exists to become primary.
	ErrFailoverAction = errors.New("failover action failed")

	// ErrAlertDispatch indicates that an alert handler returned an error or panicked.
	// Remaining handlers are still invoked.
	ErrAlertDispatch = errors.New("alert dispatch failed")

	// ErrServerNotFound indicates that the requested server is not registered.
	// Recommended to map to HTTP 404 Not Found.
	ErrServerNotFound = errors.New("server not found")

	// ErrHealthNotTracked indicates that the monitor holds no health report for the server.
	// Recommended to map to HTTP 404 Not Found.
	ErrHealthNotTracked = errors.New("server health is not being tracked")

	// ErrNoPrimary indicates that no primary server is recorded for a service type.
	// Recommended to map to HTTP 404 Not Found.
	ErrNoPrimary = errors.New("no primary server for service type")

	// ErrInvalidRule indicates a malformed failover rule definition.
	// This is only ever fatal at startup, when configuration is loaded.
	ErrInvalidRule = errors.New("invalid failover rule")
)
