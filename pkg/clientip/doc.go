// Package clientip resolves the origin address of an HTTP request.
//
// Proxy headers are consulted in a fixed, trusted order (DefaultHeaders, or
// the list given to New) and only syntactically valid addresses are
// accepted. The first valid entry of a comma separated chain wins. When no
// header yields an address, RemoteAddr is used. Zoned IPv6 addresses are
// rejected and IPv4-mapped IPv6 addresses are unmapped.
//
// Middleware stores the result in the request context, where audit capture
// and logging read it with GetIPFromContext.
package clientip
