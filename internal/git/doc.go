// Package git materializes a remote repository into a local workspace so it
// can be built. It clones shallow, single-branch checkouts with go-git and
// retries transient network failures.
package git
