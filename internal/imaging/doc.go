// Package imaging loads uploaded images and encodes the snapshots stored
// with analysis sessions.
//
// # Uploads
//
// Decode and DecodeFile accept PNG, JPEG, GIF, BMP and WebP input up to
// MaxUploadBytes. ImageCache keeps decoded files in memory so that a file
// analysed by several features is only read once.
//
// # Snapshots
//
// Sessions store images as base64 data URLs. Snapshot scales an image to
// fit SnapshotMaxSide and encodes it as JPEG; EncodeDataURL gives control
// over the format and size. ParseDataURL and DecodeDataURL reverse the
// encoding for export.
//
// # Coordinate System
//
// Regions follow image.Rectangle: (0,0) is the top-left pixel, Min is
// inclusive and Max is exclusive.
package imaging
