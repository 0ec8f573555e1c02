// Command httpserver runs the provisioning API server: it loads the
// configuration tree, then serves resolved specs to token-authenticated
// nodes along with the spec listing, admin reload, and health endpoints.
//
// Usage:
//
//	httpserver --config-root /etc/provisioning --listen-addr 127.0.0.1:8080
//
// Run with --trust-network to serve specs by URL identity without token
// authentication, for deployments where network policy is the trust boundary.
package main
