package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/pro004/tempmail"
	"github.com/pro004/tempmail/ratelimit"
)

const (
	headerOwnerID   = "X-Owner-ID"
	headerRequestID = "X-Request-ID"

	localOwnerID   = "owner"
	localRequestID = "request_id"
)

// owner returns the caller identity extracted by requireOwner.
func owner(c *fiber.Ctx) string {
	id, _ := c.Locals(localOwnerID).(string)
	return id
}

// requestID returns the request ID assigned by withRequestID.
func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals(localRequestID).(string)
	return id
}

// withRequestID assigns every request a UUID, honoring one supplied by
// the caller, and echoes it in the response.
func withRequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals(localRequestID, id)
		c.Set(headerRequestID, id)
		return c.Next()
	}
}

// requireOwner rejects requests without an X-Owner-ID header. The
// service validates the identity further; this only guarantees
// something was sent.
func requireOwner() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(headerOwnerID)
		if id == "" {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error:     "missing " + headerOwnerID + " header",
				Category:  tempmail.CategoryInvalidArgument.String(),
				RequestID: requestID(c),
			})
		}
		c.Locals(localOwnerID, id)
		return c.Next()
	}
}

// withRateLimit enforces the per-owner budget for one action.
func withRateLimit(limiter *ratelimit.Limiter, action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if limiter != nil && !limiter.Allow(owner(c), action) {
			return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{
				Error:     "rate limit exceeded, slow down",
				Category:  "rate_limited",
				RequestID: requestID(c),
			})
		}
		return c.Next()
	}
}
