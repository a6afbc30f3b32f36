// Package server hosts the fiber application in front of the static file
// responder. It owns the middleware chain shared by both listeners (panic
// recovery, request IDs, request logging) and adapts static.Response values
// to fiber responses. The responder itself stays transport-independent so it
// can be exercised without an HTTP stack.
package server
