package identity

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
)

// TokenFromRequest pulls the bearer token out of the Authorization header.
func TokenFromRequest(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// RequireAuth validates the bearer token and stores the claims both in
// fiber Locals and on the request context, so handlers can use either
// ClaimsFromContext or c.Locals.
func RequireAuth(auther *Auther) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := TokenFromRequest(c)
		if raw == "" {
			return respondError(c, ErrNotAuthenticated)
		}

		// middleware has no identity expectation yet, so the subject pin
		// stays empty
		claims, err := auther.ValidateAccessToken(c.UserContext(), raw, "")
		if err != nil {
			return respondError(c, err)
		}

		c.Locals(ClaimsContextKey, claims)
		c.SetUserContext(WithClaims(c.UserContext(), claims))

		return c.Next()
	}
}

// respondError renders a structured error as a JSON response, mapping the
// error's code to the HTTP status. Internal categories collapse to a bare
// 500 so repository details never reach the client.
func respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	textCode := "INTERNAL_ERROR"
	message := "internal error"

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if richErr.Category != goerrors.CategoryInternal {
			if richErr.Code != 0 {
				status = int(richErr.Code)
			}
			if richErr.TextCode != "" {
				textCode = richErr.TextCode
			}
			message = richErr.Message
		}
	}

	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{
			"text_code": textCode,
			"message":   message,
		},
	})
}
