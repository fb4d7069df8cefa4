// Package fdfd defines the frequency-domain field solve contract and the
// data types shared by the nonlinear solvers and the optimizer.
//
// The central abstraction is the [Oracle]: given a permittivity map and a
// source it resolves the linear field problem at one frequency. The
// package ships a minimal reference implementation, [Helmholtz], backed by
// a 5-point stencil on a uniform grid with hard walls. Anything beyond
// that (meshing, PML, mode sources) belongs to the injected oracle, not
// here.
//
//   - [Oracle]: the linear-solve collaborator contract
//   - [Field], [FieldSet]: flattened complex field grids
//   - [Nonlinearity], [Kerr]: field-dependent permittivity perturbations
//   - [Helmholtz]: reference oracle used by the CLI and the tests
package fdfd
