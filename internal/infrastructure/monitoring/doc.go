/*
Package monitoring provides Prometheus metrics for the file service.

Every Metrics value owns its registry, so tests can build as many as they
like. A nil *Metrics is accepted everywhere and records nothing.

# Metrics

  - stagingfs_http_*: request count, latency and sizes labelled by route template
  - stagingfs_walk*: tree walk latency, result size and outcome
  - stagingfs_search*: searches by outcome, degraded searches by reason
  - stagingfs_upload*: published files and bytes, identity marker writes
  - stagingfs_auth_*: credential checks, cache hits, breaker state

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(monitoring.Handler(metrics)))
*/
package monitoring
