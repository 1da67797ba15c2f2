// Package engine runs a statistics request end to end: it loads the table,
// resolves the selection, splits the rows into chunks, folds each chunk on
// its own goroutine and reduces the partials into one result.
//
// Loader and resolver errors abort before any worker starts. Worker errors
// are collected per chunk and the first one in chunk order is reported.
// Every run yields a status code alongside its error so that command line
// callers can exit with it directly.
package engine
