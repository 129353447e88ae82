// Package message defines the dispatch protocol between the dispatcher and
// the worker pool: request descriptors, reply descriptors, and the error
// taxonomy carried in replies. Every descriptor is tagged with a correlation
// ID so replies can be paired with their requests even when several are in
// flight on the same worker.
package message
