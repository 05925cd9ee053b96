// Package logging provides structured logging using uber/zap.
//
// Production mode writes JSON; development mode writes colored console
// output at debug level. Request-scoped logs carry the trace id:
//
//	logger := logging.NewDefault()
//	logger.For(ctx).Warn("search degraded", zap.String("reason", reason))
//
// AccessLog is the gin middleware writing one line per request.
package logging
