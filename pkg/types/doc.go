/*
Package types provides the core interfaces and data structures shared by the
SmartPC services.

# Architecture Overview

SmartPC runs two services behind one HTTP listener:

	┌─────────────────────────────────────────────┐
	│                 HTTP API                    │
	│        (cmd/smartpcd, pkg/api)              │
	└─────────────────────────────────────────────┘
	              │                     │
	┌─────────────┴──────┐   ┌──────────┴─────────┐
	│  Filesystem        │   │  Instance          │
	│  emulator          │   │  orchestrator      │
	│  (internal/vfs)    │   │  (internal/instance)│
	└────────────────────┘   └────────────────────┘
	     │          │            │        │      │
	┌────┴─────┐ ┌──┴───────┐ ┌──┴─────┐ ┌┴────┐ ┌┴────────┐
	│ObjectStore│ │FileStore │ │Inventory│ │Compute│ │Identity │
	└──────────┘ └──────────┘ └────────┘ └─────┘ └─────────┘

# Core Interfaces

ObjectStore:
Blob storage of file contents and folder markers, plus time-limited presigned
read and write credentials. Every call names a Bucket together with its region.

FileStore:
The metadata table of FileRecord rows keyed by full object key, and the
region to bucket mapping. Prefix scans drive folder operations.

Inventory:
Relational state of the orchestrator: instances, live status, key material,
IP records, the tracking ledger, subnet counters, quotas, assignments, idle
settings and sessions. Counters are adjusted atomically and never go negative.

Compute:
Launch, describe, start, stop and terminate of virtual machines, and key pair
management.

IdentityDecoder:
Decodes bearer tokens into Claims (subject, role and owner).

All implementations are injected at construction; nothing reaches a managed
service through package-level state.

# Emulated Filesystem Layout

Keys follow a fixed layout per user:

	{userId}/uploads/{folder path}/{fileName}   files
	{userId}/uploads/{folder path}/             folder markers
	{userId}/shared/{uuid}.zip                  share-multiple archives
	{userId}/downloads/{folder}.zip             folder download archives

A FileRecord whose ID ends with "/" or whose FileType is "folder" is a folder
marker. CreatedAt is stored in TimeLayout so that string order equals time
order.
*/
package types
