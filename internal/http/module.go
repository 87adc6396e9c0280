// Package http provides HTTP server infrastructure including the Module
// interface that all domain modules implement for route registration.
package http

import (
	"github.com/gin-gonic/gin"
)

// Module represents a bounded context that can register its HTTP routes.
// Each domain module implements this interface to encapsulate its own
// route setup, keeping the router decoupled from specific endpoints.
type Module interface {
	// Name returns the module's identifier for logging purposes.
	Name() string
	// RegisterRoutes mounts the module's routes. The webhook group carries
	// shared-token auth and rate limiting for the messaging platform's
	// callbacks; the api group carries JWT auth for agent dashboards.
	RegisterRoutes(webhook, api *gin.RouterGroup)
}
