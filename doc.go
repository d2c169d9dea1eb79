// Package authgate is the authentication gate for the goalgrid API. It
// verifies the bearer token on every inbound request against the configured
// identity provider, keeps a cached copy of the provider's signing keys,
// syncs a local user record for each verified subject, and attaches a
// request-scoped Principal for downstream handlers.
//
// The quickest way to stand up the whole core is FromConfig:
//
//	cfg, err := trust.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store, err := identity.Open(os.Getenv("DATABASE_URL"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	gate, err := authgate.FromConfig(cfg, store)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	mux := http.NewServeMux()
//	mux.Handle("/api/", gate.CheckJWT(apiHandler))
//	mux.Handle("/admin/", gate.CheckJWT(authgate.RequireRole("admin")(adminHandler)))
//
// Handlers read the caller's identity from the request context:
//
//	p, ok := authgate.FromContext(r.Context())
//	if ok {
//	    log.Printf("request from %s (%s)", p.ID, p.Role)
//	}
//
// Adapters for gin, echo, and gRPC live under framework/.
package authgate
