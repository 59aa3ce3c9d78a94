// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package tape

import (
	"bytes"
	"encoding/binary"
)

// A Codec translates between a record value and its fixed-width
// on-disk representation. Size must be constant for a given Codec:
// the file tape addresses records by offset = position * Size().
type Codec[V any] interface {
	// Size returns the fixed width, in bytes, of an encoded record.
	Size() int
	// Encode appends the wire form of v to buf and returns the
	// result.
	Encode(buf []byte, v V) []byte
	// Decode reads one record from the front of buf. buf is exactly
	// Size() bytes long.
	Decode(buf []byte) V
}

// BinaryCodec builds a Codec for any fixed-size value (numeric types,
// fixed-size arrays, and structs composed of such fields) using
// encoding/binary's reflection-based fixed-width encoding. It is the
// default codec for file-backed tapes: the record layout is a dense
// little-endian byte array with no header, exactly as a tape-drive
// emulator would lay it out.
func BinaryCodec[V any]() Codec[V] {
	var zero V
	size := binary.Size(zero)
	if size < 0 {
		panic("tape: BinaryCodec requires a fixed-size value type")
	}
	return binaryCodec[V]{size: size}
}

type binaryCodec[V any] struct {
	size int
}

func (c binaryCodec[V]) Size() int { return c.size }

func (c binaryCodec[V]) Encode(buf []byte, v V) []byte {
	var b bytes.Buffer
	b.Grow(c.size)
	if err := binary.Write(&b, binary.LittleEndian, v); err != nil {
		panic(err)
	}
	return append(buf, b.Bytes()...)
}

func (c binaryCodec[V]) Decode(buf []byte) V {
	var v V
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &v); err != nil {
		panic(err)
	}
	return v
}
