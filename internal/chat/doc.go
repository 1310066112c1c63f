// Package chat defines the normalized archive model shared by the archiver
// and the renderer.
//
// An archive is three records:
//   - GroupInfo: a static snapshot of the chat's metadata
//   - Registry: every person that authored or is referenced by a message
//   - Messages: the full history, oldest first
//
// # Attachments
//
// Attachment is a closed sum type. Consumers dispatch through
// AttachmentVisitor, which has one method per variant, so introducing a new
// attachment kind breaks every visitor at compile time instead of being
// silently ignored by a type switch.
//
// Attachment kinds this package does not model (location, emoji, reply, ...)
// decode into Other and round-trip byte for byte.
//
// # Identity
//
// Digest computes a content hash of an archive using canonical JSON
// (sorted keys, NFC-normalized strings) and SHA-256 with domain separation.
// Two runs that observe the same history produce the same digest.
package chat
