// Package model defines the core data structures shared across the
// converter.
//
// This package contains the following main types:
//   - Report: The main conversion result structure
//   - SimpleReport: A summarized, human-readable report
//   - Finding: A single issue discovered during conversion
//   - Severity: The risk level of a finding
//
// Multiple packages (pipeline, report, database) need these types, so
// centralizing them prevents import cycles. The models serialize to
// JSON for report output and database storage.
package model
