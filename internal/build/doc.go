// Package build dispatches a classified project to its build procedure and
// summarizes the result as a tagged Outcome.
//
// Only the Node-style install+build procedure exists today. Static and unknown
// projects are never built. A failing build script is not a hard failure:
// many projects ship no build step, so the outcome is Degraded and staging
// serves whatever the project contains.
package build
