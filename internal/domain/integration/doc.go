// Package integration contains the Integration bounded context.
// This context reconciles the local mirror against an external e-commerce catalog.
//
// Key concepts:
//   - RemoteCatalog: Port interface for reading the external catalog page by page
//   - RemoteItem: Value object decoded fresh from the remote API on every run
//   - ProductIdentityMapping / CategoryIdentityMapping: durable links between remote and local IDs
//   - SyncRun: Ledger entry bracketing one reconciliation run
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
