/*
Package config defines the shapes the rest of the module consumes as an
already-parsed, immutable configuration snapshot.

# Overview

config owns no loading, parsing, or persistence of its own — the hosting
program is responsible for producing a Snapshot however it sees fit (flags,
a YAML file, a database row, a remote config service) and handing it to a
Store. The core never reads a config file itself.

# Core shapes

  - Snapshot: the full routing table at one point in time — VirtualModels,
    Providers, and their MappingTables
  - VirtualModel / Target: a named alias resolving to an ordered set of
    (provider, model) targets via a load-balancing Policy
  - Provider: an upstream service descriptor (protocol family, base URL,
    auth scheme, API key pool, health endpoint)
  - MappingTable / FieldMapping: a per-provider declarative field rewrite
    consumed by the Compatibility Mapper stage
  - Store: holds the current Snapshot behind an atomic pointer so a new
    Snapshot can be swapped in without locking readers on the hot path

# Usage

	store := config.NewStore(initialSnapshot)
	scheduler.New(store, breakers, maxConcurrency, logger)
	// later, on a config change:
	store.Swap(nextSnapshot)
*/
package config
