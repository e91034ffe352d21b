// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package enc holds the low-level stream helpers shared by the column
// codecs. Values on a stream are tightly packed, so every helper reads
// exactly the bytes it needs and never buffers ahead.
package enc

import (
	"fmt"
	"io"
)

// ReadByte reads a single byte from r.
func ReadByte(r io.Reader) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadFull reads exactly size bytes from r.
func ReadFull(r io.Reader, size int) ([]byte, error) {
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadUvarint decodes a uvarint one byte at a time. Buffering here would
// steal bytes that belong to whatever follows the value on the same
// stream.
func ReadUvarint(r io.Reader) (uint64, error) {
	var x uint64
	var shift uint
	for {
		b, err := ReadByte(r)
		if err != nil {
			return 0, err
		}
		if b < 0x80 {
			if shift >= 63 && b > 1 {
				return 0, fmt.Errorf("uvarint overflows 64 bits")
			}
			return x | uint64(b)<<shift, nil
		}
		x |= uint64(b&0x7F) << shift
		shift += 7
		if shift >= 70 {
			return 0, fmt.Errorf("uvarint overflows 64 bits")
		}
	}
}
