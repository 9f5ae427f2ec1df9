// Package stage defines the contract between the workflow manager and the
// pipeline stages, plus the artifact types stages hand to one another.
package stage
