// Package server provides HTTP routing, middleware, and OAuth handling for the CLI and the web API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// [Logging] and [Recover] are the middleware the web API installs.
//
// The [BasicRouter] implementation registers method patterns ("GET /api/artists/{id}") on an [http.ServeMux].
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the authorization code callback for `blockify spotify auth`.
//
// The handler validates the state parameter (CSRF protection), exchanges the authorization code for tokens,
// and sends the result through a channel. It only processes one callback to prevent replay attacks.
//
// A temporary HTTP server starts on the configured host and port, handles the callback,
// and shuts down after receiving the token.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
