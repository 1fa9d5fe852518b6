// Package optimize implements the image transformation cache: a deterministic
// fingerprint over (source URL, width, height, format, quality), a cache
// manager that consults the durable blob store before recomputing, and the
// transform pipeline that fetches the origin bytes, decodes them, applies a
// cover-fit resize and re-encodes to the requested format. The Fiber handler
// at the top of the package maps query parameters into the typed request and
// keeps the browser-facing cache contract (X-Cache, Cache-Control) identical
// between hits and misses. Store faults degrade to recomputation; transform
// faults abort the request.
package optimize
