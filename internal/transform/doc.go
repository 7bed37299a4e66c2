// Package transform resizes source images to a fixed target size,
// preserving aspect ratio and letterboxing the remainder with a fill
// color, then re-encodes the result as PNG.
//
// Two engines implement the same contract: a pure-Go engine built on
// disintegration/imaging (default) and a libvips engine selected with
// RESIZE_ENGINE=vips for large corpora. Both are stateless and safe for
// concurrent use by the transform worker pool.
package transform
