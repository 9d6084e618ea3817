// Package resource governs the resources consumed by segment builds.
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                         Controller                           │
//	├──────────────────┬───────────────────┬───────────────────────┤
//	│  Filter memory   │  Build slots      │  Source read rate     │
//	│  (track / limit) │  (semaphore)      │  (token bucket)       │
//	├──────────────────┼───────────────────┼───────────────────────┤
//	│  AcquireMemory   │  AcquireBuild     │  LimitReader          │
//	│  ReleaseMemory   │  TryAcquireBuild  │                       │
//	│  MemoryUsage     │  ReleaseBuild     │                       │
//	└──────────────────┴───────────────────┴───────────────────────┘
//
// Filter memory is only tracked unless MemoryLimitBytes is set; the base
// service never applies backpressure on its own. PeakRSS reports the peak
// resident set of the process for diagnostics.
//
// All methods are safe for concurrent use and treat a nil *Controller as
// "no limits".
package resource
