// Copyright (c) BatchFlow Authors.
// Licensed under the MIT License.

/*
Package types provides the shared type contracts of the BatchFlow library.

types is the lowest-level public package and depends on nothing else in the
module. It defines the request/result data model and the structured error
system used by the scheduler, the backend clients, and callers.

Core types:

  - Request / Result     — one unit of inference work and its terminal outcome
  - InferenceParams      — generation configuration passed through to backends
  - Priority             — ordered urgency tiers (Low, Normal, High, Critical)
  - Error / ErrorCode    — structured errors with Retryable and Client markers

Every Request carries a single-use Reply channel (capacity 1). The scheduler
guarantees that exactly one Result is delivered on it: a success, a backend
failure, a timeout, or a shutdown error.
*/
package types
