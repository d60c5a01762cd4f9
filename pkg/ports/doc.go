/*
Package ports defines the driven ports (interfaces) of the IVR simulator.

These interfaces decouple the core logic from external implementations, allowing
the engine to work with various flow sources, session stores and archives.

# Key Interfaces

  - FlowLoader: Responsible for loading flow documents (embedded files, a directory, memory).
  - SessionStore: Responsible for persisting and loading session snapshots.
  - DistributedLocker: Provides distributed locking for handling concurrent session access.
  - SummaryArchive: Keeps the summaries of ended calls.
*/
package ports
