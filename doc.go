// Package tamarack solves mixed-integer nonlinear programs (MINLP) by
// combining a continuous relaxation, multi-start local solves, a rounding
// heuristic and an exact branch-and-bound search.
//
// tamarack runs the following phases:
//   - Relax: drop integrality, solve the continuous relaxation
//   - Heuristic: derive an integer-feasible incumbent from the relaxation
//   - Search: prove optimality (or improve the incumbent) by branch and bound
//
// The relaxation may be raced across a worker pool with randomized restarts;
// see the restart package.
package tamarack

import (
	"github.com/blang/semver/v4"
)

var Version = semver.MustParse("0.4.0")
