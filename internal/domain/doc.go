// Package domain defines the core business types for the batch email service.
//
// Types in this package are value objects shared by the ingest pipeline,
// the AWS adapters, the reporting layer, and the entry points. They carry
// no AWS clients and no HTTP concerns.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No SDK clients, no http.Request, no context.Context in struct fields
//   - JSON/DynamoDB tags are allowed (they're metadata, not behavior)
//   - Constructors and pure helpers are allowed
//   - Constants and enums belong here
package domain
