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

package serde

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/tessera-db/tessera/column"
)

// Compression selects the framing applied to every substream of a
// StreamSet.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionZstd
)

// StreamSet is an in-memory bundle of named substreams. Its Writer and
// Reader methods satisfy the stream getters of SerializeOptions and
// DeserializeOptions: repeated calls with the same path return the same
// progressing stream, so chunked bulk operations keep appending to (and
// consuming from) one substream. Not safe for concurrent use.
type StreamSet struct {
	comp    Compression
	bufs    map[uint64]*bytes.Buffer
	encs    map[uint64]*zstd.Encoder
	readers map[uint64]io.Reader
}

func NewStreamSet(comp Compression) *StreamSet {
	return &StreamSet{
		comp:    comp,
		bufs:    make(map[uint64]*bytes.Buffer),
		encs:    make(map[uint64]*zstd.Encoder),
		readers: make(map[uint64]io.Reader),
	}
}

// Writer returns the sink for path, creating the substream on first use.
func (s *StreamSet) Writer(path SubstreamPath) io.Writer {
	key := path.Key()
	buf, ok := s.bufs[key]
	if !ok {
		buf = &bytes.Buffer{}
		s.bufs[key] = buf
	}
	if s.comp == CompressionNone {
		return buf
	}
	if enc, ok := s.encs[key]; ok {
		return enc
	}
	enc, err := zstd.NewWriter(buf)
	if err != nil {
		return errWriter{err}
	}
	s.encs[key] = enc
	return enc
}

// FinishWriting flushes and closes every compressed substream. Must be
// called after the bulk suffix and before any Reader call.
func (s *StreamSet) FinishWriting() error {
	for _, enc := range s.encs {
		if err := enc.Close(); err != nil {
			return err
		}
	}
	clear(s.encs)
	return nil
}

// Reader returns the source for path, or nil if the substream was never
// written. The same reader is handed out on every call so consumption
// progresses across chunks.
func (s *StreamSet) Reader(path SubstreamPath) io.Reader {
	key := path.Key()
	if r, ok := s.readers[key]; ok {
		return r
	}
	buf, ok := s.bufs[key]
	if !ok {
		return nil
	}
	var r io.Reader = bytes.NewReader(buf.Bytes())
	if s.comp == CompressionZstd {
		dec, err := zstd.NewReader(r)
		if err != nil {
			r = errReader{err}
		} else {
			r = dec.IOReadCloser()
		}
	}
	s.readers[key] = r
	return r
}

// Bytes returns the raw (possibly compressed) contents of path's
// substream.
func (s *StreamSet) Bytes(path SubstreamPath) []byte {
	buf, ok := s.bufs[path.Key()]
	if !ok {
		return nil
	}
	return buf.Bytes()
}

// ResetReading discards reader positions so the set can be read again
// from the start.
func (s *StreamSet) ResetReading() {
	clear(s.readers)
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }

type errWriter struct{ err error }

func (e errWriter) Write([]byte) (int, error) { return 0, e.err }

// SerializeColumn drives a full bulk write of col through s: prefix, then
// chunks of at most chunkRows rows in order, then suffix, then stream
// finalization.
func SerializeColumn(s Serialization, col column.Column, streams *StreamSet, chunkRows int) error {
	if chunkRows <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidArgument, chunkRows)
	}
	opts := &SerializeOptions{Getter: streams.Writer}
	state, err := s.SerializeBulkStatePrefix(col, nil, opts)
	if err != nil {
		return err
	}
	for offset := 0; offset < col.Len(); offset += chunkRows {
		limit := min(chunkRows, col.Len()-offset)
		if err := s.SerializeBulk(col, offset, limit, nil, opts, state); err != nil {
			return err
		}
	}
	if err := s.SerializeBulkStateSuffix(state, nil, opts); err != nil {
		return err
	}
	return streams.FinishWriting()
}

// DeserializeColumn drives a full bulk read of rows rows from streams
// into col, in chunks of at most chunkRows. Each chunk gets its own
// substream cache; the cache never outlives one chunk's call tree.
func DeserializeColumn(s Serialization, col column.Column, streams *StreamSet, rows, chunkRows int) error {
	if chunkRows <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidArgument, chunkRows)
	}
	opts := &DeserializeOptions{Getter: streams.Reader}
	state, err := s.DeserializeBulkStatePrefix(nil, opts)
	if err != nil {
		return err
	}
	for done := 0; done < rows; done += chunkRows {
		limit := min(chunkRows, rows-done)
		opts.Cache = NewSubstreamCache()
		if err := s.DeserializeBulk(col, limit, nil, opts, state); err != nil {
			return err
		}
	}
	return nil
}
