// Package domain defines the core business entities for finsight.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: A parsed filing, transcript or release as pages of numbered lines
//   - Chunk: A page-scoped span of lines used as the retrieval unit
//   - Query: A question with ticker/period filters and a top-k budget
//   - Citation: A resolved link from an answer sentence to a chunk
//   - EvalCase / EvalResult / Report: Evaluation harness inputs and outputs
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
