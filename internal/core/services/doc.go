// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters): indexing, retrieval, answer
// generation with citations, and the evaluation harness.
//
// Services depend only on ports; provider SDKs and storage engines
// live in the adapters.
package services
