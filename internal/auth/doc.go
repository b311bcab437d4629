// Package auth decides who owns a request.
//
// Two modes are supported, selected with AUTH_MODE:
//   - "none": every request acts as one shared library user, created on
//     first start from AUTH_DEFAULT_USERNAME.
//   - "local": users log in with a password (scs session cookie, CSRF
//     protected) or send an API token as "Authorization: Bearer <token>".
//
// Handlers read the caller with GetUserID. It never returns 0 once the
// middleware ran, so imports and checkouts always have an owner.
//
//	svc := auth.NewService(db, cfg.Auth)
//	mw := auth.NewMiddleware(svc, sessions, cfg.Auth, defaultUser.ID)
//	router.Use(mw.Handler())
package auth
