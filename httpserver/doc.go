/*
Package httpserver exposes the provisioning API over HTTP.

# Endpoints

  - GET /spec/{identity} - resolved spec for the identity named by the
    presented token's s claim; requires Authorization: Bearer <token> unless
    the server runs in trusted-network mode
  - GET /specs - sorted list of known spec identities, no authentication
  - POST /admin/reload - re-read the configuration tree and drop caches
  - GET /livez, /readyz, /drain, /undrain - health and rollout endpoints
  - /debug - pprof, when enabled

# Error bodies

Failures are returned as

	{"error": {"code": "<Exxx>", "message": "..."}}

with the HTTP status derived from the code in exactly one place
(Handler.writeError). Internal failures are logged in full and returned with
a generic message.

# Trust modes

In the default mode every spec request carries a signed provisioning token;
the token binds the node identity in the URL and names the spec to serve.
With TrustNetwork set the token route is replaced by a by-URL route for
deployments whose network layer is the trust boundary; specs whose posture
declares token authentication are refused there.
*/
package httpserver
