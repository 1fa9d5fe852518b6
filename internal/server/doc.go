// Package server hosts the Fiber HTTP service: the route table that binds
// /api/ImageOptimizeProxy, /api/proxy and /api/ping to their handlers, the
// request-ID middleware, and the shared upstream http.Client used by both the
// transform pipeline and the passthrough proxy. Handlers are injected as
// explicit dependencies so tests can swap in fakes without touching global
// state.
package server
