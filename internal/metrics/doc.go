// Package metrics rolls detection records up into a global and
// per-operation accuracy report.
//
// Aggregation is all or nothing: a record population that is empty, not a
// whole number of source images, or that names an operation outside the
// taxonomy yields an *IntegrityError instead of a partial report.
package metrics
