// Package server assembles the staging filesystem service.
//
// Server Lifecycle:
//  1. Validate configuration
//  2. Build logger, metrics and tracer
//  3. Open the storage root and build the domain components
//  4. Select the authenticator for the configured auth mode
//  5. Register middleware and routes
//  6. Serve until the context is canceled, then shut down gracefully
//
// Domain routes are served at the root and again under /v0.
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	err = srv.Run(ctx)
package server
