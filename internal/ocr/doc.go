// Package ocr provides the text-detection service the evaluator scores.
//
// Service is the boundary: encoded image bytes in, an ordered list of
// lowercased texts out. Tesseract implements it on top of the Tesseract
// engine (via gosseract/v2); Static and Func are substitutes for tests and
// for replaying recorded results.
//
// # Prerequisites
//
// Tesseract must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr libtesseract-dev
//   - macOS: brew install tesseract
//
// Language data files are required for each language:
//   - Ubuntu/Debian: apt-get install tesseract-ocr-eng (for English)
//   - Other languages: tesseract-ocr-<lang> packages
//
// # Output
//
// Tesseract reports text lines first and words second. A two-word sign
// "ROAD CLOSED" therefore yields ["road closed", "road", "closed"], which
// lets an exact match on the line and a subset match on the words both
// succeed. Empty texts are dropped.
//
// # Thread Safety
//
// Each DetectText call uses its own engine instance, so a single Tesseract
// value can serve concurrent callers. OCR is CPU-intensive; callers bound
// concurrency themselves.
package ocr
