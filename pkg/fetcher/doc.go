// Package fetcher performs single-URL media transfers over net/http.
//
// A Client carries default headers and a cookie jar scoped with the public
// suffix list. The per-call timeout covers the whole transfer; the request
// context is released when the caller closes the response body.
package fetcher
