// Package workspace manages the scratch directories serve mode materializes
// project sources into before building them.
//
// Each deploy job gets its own directory (e.g. deploybuilder-<job id>) under a
// shared base directory. Directories are removed when a job finishes or, for
// jobs that crashed midway, by the retention sweep via PruneOlderThan.
package workspace
