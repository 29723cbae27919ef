// Package handler wires the HTTP surface: request binding, auth context
// propagation and error translation. All business rules live in service.
package handler

import (
	"context"

	"bizledger/internal/apperror"
	"bizledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// errStatus maps a service error to its HTTP status code.
func errStatus(err error) int {
	return apperror.HTTPStatus(err)
}

// actorContext returns the request context stamped with the authenticated
// user, so services can attribute audit records.
func actorContext(c *gin.Context) context.Context {
	ctx := c.Request.Context()
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok {
			if id, err := uuid.Parse(s); err == nil {
				ctx = service.WithActor(ctx, id)
			}
		}
	}
	return ctx
}
