// Package blobstore wraps the embedded key-value engine that holds
// normalized image bytes. One write transaction spans one batch; a
// batch is either fully committed or not visible at all.
package blobstore
