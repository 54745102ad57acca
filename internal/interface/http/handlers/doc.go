// Package handlers contains HTTP middleware and health checks shared by
// the API server.
//
// # Health Checks
//
// The HealthChecker interface allows registering multiple named health checks
// that are executed in parallel:
//
//	checker := handlers.NewCompositeHealthChecker("v0.1.0")
//	checker.AddCheck("store", handlers.NewPingCheck(store))
//	checker.AddCheck("cache", handlers.NewPingCheck(cache))
//
//	status := checker.Check(ctx)
//	if !status.Ready {
//	    // report 503
//	}
//
// # Middleware
//
// APIKeyAuth compares the presented service key against a bcrypt hash.
// UserIdentityMiddleware resolves the caller from the X-User-ID header set
// by the authentication gateway; UserIDFrom reads it back.
//
//	h := handlers.ChainHandler(router,
//	    handlers.SecurityHeadersMiddleware,
//	    handlers.RequestSizeLimitMiddleware(64<<10),
//	)
package handlers
