package aresdriver

import "golang.org/x/net/nettest"

// IsIpv6LoopbackAvailable reports whether this host can reach the IPv6
// loopback address, gating whether HostnameRequest issues an AAAA lookup
// alongside its mandatory A lookup (spec.md §4.4 step 4). It is a package
// var, overridable in tests, mirroring the test-seam idiom grpc-go's own
// DNS resolver uses for its package-level time/network hooks.
var IsIpv6LoopbackAvailable = nettest.SupportsIPv6
