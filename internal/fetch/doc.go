// Package fetch provides the HTTP GET capability used to download pages and
// their assets.
//
// A Client returns the raw response body of a URL, or an error when the
// request fails, the status is outside 200-299, or the body is larger than
// the configured limit. It can route traffic through a SOCKS5 proxy, inject
// per-site headers and cookies, and throttle requests with a token bucket.
// The Client performs no retries.
package fetch
