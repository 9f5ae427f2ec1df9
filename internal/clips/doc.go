// Package clips owns the library of finished clip artifacts. Clip records are
// created atomically with job completion and live on after their producing
// job is pruned.
package clips
