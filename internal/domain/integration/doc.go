// Package integration contains the catalog synchronization bounded context.
// It describes how canonical products are tracked and pushed to external
// commerce platforms.
//
// Key concepts:
//   - PlatformCode: the external platforms a catalog can be published to
//   - SyncRecord: per (canonical product, platform) identity and checkpoint
//   - PushState: the ordered multi-step push pipeline and its transitions
//   - Transformer: canonical <-> platform payload mapping port
//   - SingleCallClient / MultiStepClient: platform client ports
//   - SyncError: the error taxonomy shared by every layer
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
