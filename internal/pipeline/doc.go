// Package pipeline wires the perturbation engine, the OCR service, the
// validator and the aggregator to the object and record stores.
//
// The three stages mirror how results are produced in deployment:
//
//   - Preprocess: read a source image, generate the perturbation battery,
//     store every variant under "{base}_{suffix}/{op}.{ext}" and save a
//     preprocessing record.
//   - Detect: run OCR on one stored variant, score it against the ground
//     truth and upsert its detection record.
//   - GatherMetrics: aggregate all detection records and write metrics.json.
//
// EvaluateCorpus drives the first two stages over every source image.
package pipeline
