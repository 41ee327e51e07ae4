// Package perturb generates the fixed battery of degraded variants used to
// measure OCR robustness.
//
// A Plan lists the perturbation units to apply. The default plan covers
// four operation kinds with fixed parameter domains:
//
//	scale   10, 30, 50, 70, 90 percent      -> scaled_10 ... scaled_90
//	blur    box kernel 1, 5, 9, 13, 17      -> blurred_1 ... blurred_17
//	gamma   0.25, 1.5, 3.0                  -> brightness_0.25 ... brightness_3.0
//	noise   probability 0.1 ... 0.9         -> noise_1 ... noise_9
//
// # Determinism
//
// Scale, blur and gamma units are pure functions of the source pixels and
// the parameter: re-running them yields byte-identical output. Noise draws
// from the source returned by the Engine's RandFactory; with SeededRand the
// output is repeatable as well.
//
// # Keys
//
// Every variant has an operation key ("blurred_9") and, once a run suffix is
// chosen, a storage key of the form "{base}_{suffix}/{op}.{ext}". See
// StorageKey and SuffixFunc.
//
// # Failure isolation
//
// Engine.Run never lets one unit's failure affect another. Failures are
// returned as *UnitError values alongside the successful variants.
package perturb
