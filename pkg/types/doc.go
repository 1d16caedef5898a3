// Package types defines the Catch entity, the query and statistics value
// types, the Backend interface implemented by the storage engines, and the
// standard errors for the catchlog storage system.
//
// Helpers in this package are pure functions over []Catch. The key-value
// backend uses them for every query; the SQLite backend uses them for the
// predicates that must match Go string semantics exactly, so both engines
// return the same results for the same collection.
package types
