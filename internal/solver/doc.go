// Package solver iterates the linear frequency-domain solve to
// self-consistency in nonlinear media.
//
//   - [Born]: Picard / direct-substitution fixed point; cheap per
//     iteration, linear convergence
//   - [Newton]: full Newton steps on an augmented field/conjugate-field
//     system; one extra direct solve per iteration, quadratic convergence
//
// Both report the per-iteration relative residual and flag, rather than
// fail on, a hit iteration cap. Linear-solve failures propagate unchanged.
package solver
