// Package crop turns an edit state (pan, zoom, rotation and color
// adjustments) over a source photo into a print-ready JPEG.
//
// Geometry is computed on a square safe surface large enough to hold the
// source at any rotation. Sessions pair that planner with a debounced undo
// history and a single-flight exporter.
package crop
