/*
Package configstore loads the on-disk configuration tree and serves it to the
rest of the process.

The tree layout is:

	<root>/
	    site.yaml       flat mapping of site-wide default attributes
	    secrets.yaml    signing key (hex), ssh key map, API token map
	    postures/*.yaml one security posture per file, named by file name
	    specs/*.yaml    one raw spec per identity, named by file name

site.yaml, secrets.yaml and the posture directory are parsed eagerly at
construction and on Reload; spec files are read lazily on first request and
cached. The parsed tree lives in a snapshot behind an atomic pointer: Reload
builds a complete new snapshot and swaps it in one store, so a request in
flight observes either the entirely old or entirely new tree.

The store performs filesystem reads only at load time and on raw-spec cache
misses, and never writes.
*/
package configstore
