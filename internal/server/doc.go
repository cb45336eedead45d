// Package server is the web interface of the command protocol.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Sessions
//
// [SessionMiddleware] gives every browser a uuid session cookie. The session id scopes the stop flag,
// the task handle, the selected modules and the progress kept in the shared state store, so two
// browsers drive independent passes.
//
// # Endpoints
//
//	GET  /                      index page with the parse and export panels
//	POST /action                start, ask or stop an action (form or JSON)
//	POST /settingup             store the module and cookies of an action
//	GET  /titles?action=&tab=   titles fragment of one tab
//	GET  /ws/progress?action=   progress frames over a websocket
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
// [ProgressStream] is registered this way.
package server
