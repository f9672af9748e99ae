// Package storage provides the tier abstraction and block frame format for
// the hierarchical amplitude store. A Tier holds framed amplitude blocks on
// one physical medium: an in-memory buffer, an mmap'd local slot file, or an
// S3-compatible remote bucket.
//
// All raw/unsafe region access is confined to the mapped tier implementation;
// callers only ever see framed byte slices.
package storage
