// Package http provides the HTTP handlers of the staging filesystem API.
//
// Every domain handler reads the caller from the request context, which the
// auth middleware fills in, and confines all paths to that caller's home.
//
// Endpoints:
//   - Health: /, /health and /test-service
//   - Listing: GET /list/*path?type=file|folder
//   - Search: GET /search/*query?folders=true
//   - Metadata: GET /stat/*path
//   - Upload: POST /upload (multipart "uploads" and "destPath")
//   - Delete: DELETE /file/*path
//
// Example Usage:
//
//	handlers := http.NewHandlers(info, http.Deps{FS: fsys, Resolver: resolver, ...})
//	router.GET("/list/*path", handlers.List)
//	router.POST("/upload", handlers.Upload)
package http
