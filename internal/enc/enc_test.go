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

package enc

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadByte(t *testing.T) {
	r := strings.NewReader("ab")
	b, err := ReadByte(r)
	require.NoError(t, err)
	assert.Equal(t, byte('a'), b)
	b, err = ReadByte(r)
	require.NoError(t, err)
	assert.Equal(t, byte('b'), b)
	_, err = ReadByte(r)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadFull(t *testing.T) {
	r := strings.NewReader("hello world")
	buf, err := ReadFull(r, 5)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))

	_, err = ReadFull(r, 100)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReadUvarint(t *testing.T) {
	for _, v := range []uint64{0, 1, 127, 128, 300, 1 << 20, 1<<63 - 1, 1<<64 - 1} {
		frame := binary.AppendUvarint(nil, v)
		got, err := ReadUvarint(bytes.NewReader(frame))
		require.NoError(t, err, "value %d", v)
		assert.Equal(t, v, got)
	}
}

func TestReadUvarintDoesNotOverread(t *testing.T) {
	frame := binary.AppendUvarint(nil, 300)
	r := bytes.NewReader(append(frame, "tail"...))
	v, err := ReadUvarint(r)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), v)
	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "tail", string(rest))
}

func TestReadUvarintOverflow(t *testing.T) {
	// Eleven continuation bytes cannot encode a 64-bit value.
	bad := bytes.Repeat([]byte{0xFF}, 11)
	_, err := ReadUvarint(bytes.NewReader(bad))
	assert.Error(t, err)
}
