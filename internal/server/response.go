package server

import (
	"net/http"

	"github.com/gofiber/fiber/v3"
)

// WriteResponse copies status, headers and body onto the fiber response.
// An empty body leaves the response body empty.
func WriteResponse(c fiber.Ctx, status int, header http.Header, body []byte) error {
	for key, values := range header {
		for i, value := range values {
			if i == 0 {
				c.Set(key, value)
				continue
			}
			c.Response().Header.Add(key, value)
		}
	}
	c.Status(status)
	if len(body) == 0 {
		return nil
	}
	return c.Send(body)
}
