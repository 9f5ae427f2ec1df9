// Package preflight provides readiness checks for the external tools and
// filesystem paths the pipeline depends on. The workflow manager runs them
// before admitting a job; the CLI status command renders them individually.
package preflight
