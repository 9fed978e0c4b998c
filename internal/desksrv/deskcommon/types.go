// Package deskcommon provides shared types and context utilities for the
// desk service: caller identity, roles, and desk telemetry state.
package deskcommon

// Role is the caller's role as asserted by the fronting identity layer.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// DeskState is the transient state of a desk as read from the telemetry
// source. It is never persisted by this service.
type DeskState struct {
	PositionMM int    `json:"position_mm"`
	SpeedMMS   int    `json:"speed_mms"`
	Status     string `json:"status"`
}

// IsMoving reports whether the desk is currently being driven.
func (s DeskState) IsMoving() bool {
	return s.SpeedMMS != 0
}

// ServerVersion is the deskwise server version string.
const ServerVersion = "0.1.0"

// ApiVersion is the deskwise API version string.
const ApiVersion = "v1"
