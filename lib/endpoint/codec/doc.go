// Package codec provides encodings for Record, the full typed value of one key.
//
// Codecs are pluggable and share the ICodec interface:
//   - JSON: human-readable, easy to inspect (strings must be valid UTF-8)
//   - GOB: Go's native binary encoding
//   - Binary: a compact custom format with deterministic output
//
// Marshal and Unmarshal wrap the encoded record in a small header (magic
// number, codec name, version). The header is what makes blobs of different
// codecs incompatible; Format reports the matching endpoint.DumpFormat so that
// the block transfer strategy is only chosen between endpoints using the same codec.
package codec
