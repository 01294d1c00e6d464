// Package server exposes the deploy pipeline over HTTP.
//
// Clients submit a project either as a zip upload or as a git repository
// reference. Each submission becomes a Job that a bounded worker pool builds
// into data_dir/sites/<site>. Jobs targeting the same site never run
// concurrently. Staged sites are served under /sites/{site}/.
package server
