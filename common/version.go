// Package common holds process-wide helpers shared by every binary:
// logger construction and build identification.
package common

// PackageName identifies this service in metrics and logs.
const PackageName = "provisioning-server"

// Version is overridden at build time via
// -ldflags "-X github.com/fleetyard/provisioning-server/common.Version=...".
var Version = "dev"
