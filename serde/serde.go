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

// Package serde implements the serialization layer of the column model:
// a uniform codec contract covering chunked binary streams, single-value
// binary encoding and six text dialects, plus concrete codecs for the
// basic column types and for the Variant (tagged-union) column.
//
// Binary bulk operations follow a prefix/chunks/suffix bracket. The state
// returned by the prefix call must be threaded through every chunk of the
// same logical stream sequence and handed to the suffix call; it is owned
// by exactly one sequence and is not safe for concurrent use. The codec
// objects themselves are immutable after construction and may be shared
// freely across goroutines.
package serde

import (
	"bufio"
	"errors"
	"io"

	"github.com/tessera-db/tessera/column"
)

// Dialect selects one of the text representations a codec can read or
// write. Tokenization rules (field boundaries, quoting, escaping) are
// dialect-specific and applied before any value parsing.
type Dialect int

const (
	// DialectEscaped is tab-separated text with backslash escapes.
	DialectEscaped Dialect = iota
	// DialectQuoted is SQL-literal style text with single-quoted strings.
	DialectQuoted
	// DialectCSV is comma-separated text with double-quote quoting.
	DialectCSV
	// DialectJSON is standard JSON values.
	DialectJSON
	// DialectRaw is tab-separated text without any escaping.
	DialectRaw
	// DialectWholeText treats the entire remaining input as one token.
	DialectWholeText
	// DialectXML is serialize-only.
	DialectXML
)

func (d Dialect) String() string {
	switch d {
	case DialectEscaped:
		return "Escaped"
	case DialectQuoted:
		return "Quoted"
	case DialectCSV:
		return "CSV"
	case DialectJSON:
		return "JSON"
	case DialectRaw:
		return "Raw"
	case DialectWholeText:
		return "WholeText"
	case DialectXML:
		return "XML"
	}
	return "Unknown"
}

var (
	// ErrCorruptStream reports structurally invalid binary input, such as
	// a discriminator outside the declared alternative range. Fatal for
	// the read that hit it.
	ErrCorruptStream = errors.New("corrupt stream")
	// ErrUnresolved reports a text token no alternative could parse.
	ErrUnresolved = errors.New("cannot resolve text value")
	// ErrInvalidArgument reports a violated caller precondition.
	ErrInvalidArgument = errors.New("invalid argument")
)

// State is the opaque per-sequence bulk codec state. Codecs that need no
// cross-chunk context return nil.
type State any

// SerializeOptions carries the substream sinks for a bulk write.
type SerializeOptions struct {
	// Getter resolves a substream path to its physical sink. Returning
	// nil skips the substream.
	Getter func(SubstreamPath) io.Writer
}

// DeserializeOptions carries the substream sources and the per-call-tree
// cache for a bulk read.
type DeserializeOptions struct {
	// Getter resolves a substream path to its physical source. Returning
	// nil skips the substream.
	Getter func(SubstreamPath) io.Reader
	// Cache, when non-nil, avoids re-reading substreams requested from
	// multiple traversal paths within one deserialization call tree. It
	// is owned by the caller.
	Cache *SubstreamCache
}

// StreamVisitor is invoked once per leaf substream during enumeration.
type StreamVisitor func(path SubstreamPath)

// Serialization is the uniform codec contract. Every alternative codec
// and the Variant codec itself implement it.
type Serialization interface {
	// EnumerateStreams invokes visit for every leaf substream of this
	// codec under the given base path. Purely structural.
	EnumerateStreams(path SubstreamPath, visit StreamVisitor)

	// SerializeBulkStatePrefix opens a bulk write sequence.
	SerializeBulkStatePrefix(col column.Column, path SubstreamPath, opts *SerializeOptions) (State, error)
	// SerializeBulk writes rows [offset, offset+limit) of col to the
	// substreams under path.
	SerializeBulk(col column.Column, offset, limit int, path SubstreamPath, opts *SerializeOptions, state State) error
	// SerializeBulkStateSuffix closes a bulk write sequence.
	SerializeBulkStateSuffix(state State, path SubstreamPath, opts *SerializeOptions) error

	// DeserializeBulkStatePrefix opens a bulk read sequence.
	DeserializeBulkStatePrefix(path SubstreamPath, opts *DeserializeOptions) (State, error)
	// DeserializeBulk reads up to limit rows from the substreams under
	// path, appending them to col.
	DeserializeBulk(col column.Column, limit int, path SubstreamPath, opts *DeserializeOptions, state State) error

	// SerializeBinary writes the single row col[row] in binary form.
	SerializeBinary(col column.Column, row int, w io.Writer) error
	// DeserializeBinary reads one binary value and appends it to col.
	DeserializeBinary(col column.Column, r io.Reader) error

	// SerializeValue writes one boxed value in binary form.
	SerializeValue(v any, w io.Writer) error
	// DeserializeValue reads one binary value and returns it boxed.
	DeserializeValue(r io.Reader) (any, error)

	// SerializeText writes the single row col[row] under the dialect.
	SerializeText(col column.Column, row int, w io.Writer, d Dialect, opts *FormatOptions) error
	// DeserializeText reads one text token under the dialect and appends
	// the parsed value to col. A failed parse is a hard error. Under the
	// CSV and WholeText dialects the field boundary is the caller's
	// concern: r must hold exactly one field, the way the Variant codec
	// materializes the token before delegating to an alternative.
	DeserializeText(col column.Column, r *bufio.Reader, d Dialect, opts *FormatOptions) error
	// TryDeserializeText is DeserializeText with recoverable failure: it
	// reports false instead of an error and appends nothing on failure.
	TryDeserializeText(col column.Column, r *bufio.Reader, d Dialect, opts *FormatOptions) bool
}

// inputExhausted reports whether r has no further bytes. Used to enforce
// the full-token-consumption rule after a trial parse.
func inputExhausted(r *bufio.Reader) bool {
	_, err := r.Peek(1)
	return err == io.EOF
}
