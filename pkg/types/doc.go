/*
Package types provides the core interfaces, data structures, and type definitions for TierCache.

This package serves as the foundation for the entire TierCache system, defining the contracts
between different components and establishing the data structures used throughout the codebase.

# Architecture Overview

TierCache follows a layered architecture with well-defined interfaces between components:

	┌─────────────────────────────────────────────┐
	│              Application Code               │
	│        (callers of pkg/cache APIs)          │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│            Cache Layer (pkg/cache)          │
	│    LRU · Adaptive · Warmer · MultiLevel     │
	└─────────────────────────────────────────────┘
	          │        │        │        │
	┌─────────┴───┐ ┌──┴──┐ ┌───┴────┐ ┌─┴───────┐
	│    Store    │ │Hash │ │Serial- │ │Metrics  │
	│ (L2 tiers)  │ │Keyer│ │ izer   │ │         │
	└─────────────┘ └─────┘ └────────┘ └─────────┘

# Core Interfaces

The package defines several critical interfaces that enable loose coupling and testability:

Cache Interface:
The generic in-process caching contract with TTL-aware storage, LRU recency
semantics, and explicit lifecycle management via Close.

Statistical Interface:
Extends Cache with counter snapshots and hot-key ranking, implemented by
caches that carry an access analyzer.

Warmable Interface:
Extends Cache with loader registration and batch pre-population for cold-start
mitigation.

Store Interface:
Abstracts the persistent second tier consumed by MultiLevelCache. Implementations
exist for process memory, the local filesystem, Valkey, and Amazon S3; all report
absence as (nil, nil) rather than an error.

Serializer and KeyEncoder Interfaces:
Injection points for the byte representation of values and the string form of
keys when they cross into a Store.

# Data Structures

Key data structures include:

CacheStats:
Point-in-time counter snapshot covering hits, misses, evictions, expirations,
and derived ratios.

MultiLevelStats:
Two-tier aggregate combining an L1 snapshot with level-two traffic counters.

ResizeEvent:
One adaptive capacity change, including the hit rate that triggered it and the
number of entries migrated.

WarmupResult:
Outcome summary for a warm-up run: requested, loaded, failed, and skipped counts.

# Interface Contracts

All interfaces in this package follow these principles:

 1. Miss Is Not an Error: in-process lookups report absence through boolean
    results; Store lookups report absence as (nil, nil)
 2. Context Awareness: Store operations accept context.Context for cancellation
    and timeouts
 3. Error Handling: all failing operations return explicit errors following Go
    conventions
 4. Statistics: caches expose counter snapshots where appropriate

# Thread Safety

All interfaces defined in this package are designed to be thread-safe when properly
implemented. Implementers must ensure:

- Concurrent access safety for all methods
- Proper synchronization for shared resources
- Atomic operations for statistics counters
- Context-aware cancellation handling

This package serves as the contract definition for all TierCache components,
ensuring consistency, testability, and maintainability across the system.
*/
package types
