// Package mmap maps local term source files read-only into memory.
//
//	m, err := mmap.Open("terms.txt")
//	if err != nil { ... }
//	defer m.Close()
//
//	_ = m.Advise(mmap.AccessSequential)
//	data := m.Bytes()
//
// Unix platforms use mmap(2) and madvise(2); Windows uses
// CreateFileMapping/MapViewOfFile and ignores access hints.
//
// Bytes must not be used after Close returns.
package mmap
