// Package ocr recognises words in camera frames and uploaded images using
// Tesseract.
//
// This package wraps the Tesseract OCR engine (via gosseract/v2). An Engine
// owns one Tesseract client and serialises access to it, so a single
// Engine can be shared by the live loop and upload analysis.
//
// # Prerequisites
//
// Tesseract must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// Set OBVIX_TESSDATA to point at a non-standard tessdata directory.
//
// # Confidence
//
// Word confidences are reported on Tesseract's 0..100 scale in Page.Words
// and scaled to 0..1 in the vision.Result values returned by Detect.
//
// # Preprocessing
//
// Frames are converted to grayscale, contrast-stretched and upscaled when
// small before recognition. TextRegions is a cheap edge-density scan that
// lets the live loop skip frames with nothing that looks like text.
package ocr
