// Package persistence provides the little-endian binary framing shared by all
// sentvec artifacts.
//
// Every artifact written through Writer has the layout
//
//	[magic u32][version u32][body ...][crc32 u32]
//
// where the CRC32C covers magic, version and body. Whole artifacts may
// additionally be wrapped in a compression envelope (see Compress). SaveToFile
// replaces a file atomically.
package persistence
