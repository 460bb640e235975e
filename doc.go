// Package breakpad resolves module-relative addresses from a crashed
// process into function names, source locations, and stack-unwind
// descriptors, using the textual symbol-file format produced by
// breakpad-style symbol dumpers.
//
// A Resolver owns a set of Modules keyed by module name. Each Module is
// loaded once from a symbol file and is safe for unsynchronized
// concurrent lookups afterward.
package breakpad
