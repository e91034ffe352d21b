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
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/tessera-db/tessera/column"
	"github.com/tessera-db/tessera/internal/enc"
)

// String is the codec for variable-length string columns. Each value is
// framed as a uvarint length followed by the raw bytes, in both single
// and bulk binary form. The bulk read keeps a buffered reader in its
// sequence state so the varint framing survives chunk boundaries.
type String struct{}

func NewString() *String { return &String{} }

// TextWeight marks the string grammar as the most permissive one; it is
// always tried last.
func (s *String) TextWeight() int { return textWeightString }

func (s *String) cast(col column.Column) (*column.String, error) {
	c, ok := col.(*column.String)
	if !ok {
		return nil, fmt.Errorf("%w: string codec cannot serve column of type %T", ErrInvalidArgument, col)
	}
	return c, nil
}

func (s *String) EnumerateStreams(path SubstreamPath, visit StreamVisitor) {
	visit(path)
}

func (s *String) SerializeBulkStatePrefix(column.Column, SubstreamPath, *SerializeOptions) (State, error) {
	return nil, nil
}

func (s *String) SerializeBulkStateSuffix(State, SubstreamPath, *SerializeOptions) error {
	return nil
}

// stringReadState carries the buffered view of the substream across
// chunks of one read sequence.
type stringReadState struct {
	br *bufio.Reader
}

func (s *String) DeserializeBulkStatePrefix(path SubstreamPath, opts *DeserializeOptions) (State, error) {
	r := opts.Getter(path)
	if r == nil {
		return &stringReadState{}, nil
	}
	return &stringReadState{br: bufio.NewReader(r)}, nil
}

func (s *String) SerializeBulk(col column.Column, offset, limit int, path SubstreamPath, opts *SerializeOptions, _ State) error {
	c, err := s.cast(col)
	if err != nil {
		return err
	}
	if offset < 0 || limit < 0 || offset+limit > c.Len() {
		return fmt.Errorf("%w: range [%d, %d) out of column bounds %d", ErrInvalidArgument, offset, offset+limit, c.Len())
	}
	w := opts.Getter(path)
	if w == nil || limit == 0 {
		return nil
	}
	var frame []byte
	for _, v := range c.Values()[offset : offset+limit] {
		frame = binary.AppendUvarint(frame[:0], uint64(len(v)))
		frame = append(frame, v...)
		if _, err := w.Write(frame); err != nil {
			return err
		}
	}
	return nil
}

func (s *String) DeserializeBulk(col column.Column, limit int, path SubstreamPath, opts *DeserializeOptions, state State) error {
	c, err := s.cast(col)
	if err != nil {
		return err
	}
	if limit == 0 {
		return nil
	}
	if cached, ok := opts.Cache.Get(path); ok {
		cc, err := s.cast(cached)
		if err != nil {
			return err
		}
		if cc.Len() < limit {
			return fmt.Errorf("%w: cached substream %s holds %d values, need %d", ErrCorruptStream, path, cc.Len(), limit)
		}
		c.Append(cc.Values()[cc.Len()-limit:]...)
		return nil
	}
	st, ok := state.(*stringReadState)
	if !ok {
		return fmt.Errorf("%w: string codec handed foreign bulk state %T", ErrInvalidArgument, state)
	}
	if st.br == nil {
		return nil
	}
	read := make([]string, 0, limit)
	for i := 0; i < limit; i++ {
		n, err := binary.ReadUvarint(st.br)
		if err == io.EOF && len(read) == 0 {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: short string substream %s: %v", ErrCorruptStream, path, err)
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(st.br, buf); err != nil {
			return fmt.Errorf("%w: short string substream %s: %v", ErrCorruptStream, path, err)
		}
		read = append(read, string(buf))
	}
	c.Append(read...)
	opts.Cache.Put(path, column.NewString(read...))
	return nil
}

func (s *String) SerializeBinary(col column.Column, row int, w io.Writer) error {
	c, err := s.cast(col)
	if err != nil {
		return err
	}
	return s.SerializeValue(c.Value(row), w)
}

func (s *String) DeserializeBinary(col column.Column, r io.Reader) error {
	c, err := s.cast(col)
	if err != nil {
		return err
	}
	v, err := s.DeserializeValue(r)
	if err != nil {
		return err
	}
	c.Append(v.(string))
	return nil
}

func (s *String) SerializeValue(v any, w io.Writer) error {
	val, ok := v.(string)
	if !ok {
		return fmt.Errorf("%w: string codec cannot serialize value of type %T", ErrInvalidArgument, v)
	}
	frame := binary.AppendUvarint(nil, uint64(len(val)))
	frame = append(frame, val...)
	_, err := w.Write(frame)
	return err
}

func (s *String) DeserializeValue(r io.Reader) (any, error) {
	n, err := enc.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading string length: %v", ErrCorruptStream, err)
	}
	buf, err := enc.ReadFull(r, int(n))
	if err != nil {
		return nil, fmt.Errorf("%w: reading string body: %v", ErrCorruptStream, err)
	}
	return string(buf), nil
}

func (s *String) SerializeText(col column.Column, row int, w io.Writer, d Dialect, opts *FormatOptions) error {
	c, err := s.cast(col)
	if err != nil {
		return err
	}
	v := c.Value(row)
	switch d {
	case DialectEscaped:
		return writeEscapedText(w, v)
	case DialectQuoted:
		return writeQuotedText(w, v)
	case DialectCSV:
		return writeCSVText(w, v, opts.csvDelimiter())
	case DialectJSON:
		out, err := json.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	case DialectRaw, DialectWholeText:
		_, err := io.WriteString(w, v)
		return err
	case DialectXML:
		return writeXMLText(w, v)
	}
	return fmt.Errorf("%w: unknown dialect %d", ErrInvalidArgument, d)
}

func (s *String) DeserializeText(col column.Column, r *bufio.Reader, d Dialect, opts *FormatOptions) error {
	c, err := s.cast(col)
	if err != nil {
		return err
	}
	switch d {
	case DialectEscaped:
		tok, err := readUntilTabOrNewline(r)
		if err != nil {
			return err
		}
		c.Append(unescapeText(tok))
		return nil
	case DialectQuoted:
		tok, err := readQuotedToken(r)
		if err != nil {
			return err
		}
		v, ok := unquoteText(tok)
		if !ok {
			return fmt.Errorf("%w: %q is not a quoted string", ErrUnresolved, tok)
		}
		c.Append(v)
		return nil
	case DialectCSV, DialectWholeText:
		// The field boundary was decided by the outer tokenizer; the
		// remaining input is the value.
		tok, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		c.Append(string(tok))
		return nil
	case DialectJSON:
		tok, err := readJSONToken(r)
		if err != nil {
			return err
		}
		if !gjson.ValidBytes(tok) {
			return fmt.Errorf("%w: %q is not valid JSON", ErrUnresolved, tok)
		}
		res := gjson.ParseBytes(tok)
		if res.Type != gjson.String {
			return fmt.Errorf("%w: %q is not a JSON string", ErrUnresolved, tok)
		}
		c.Append(res.String())
		return nil
	case DialectRaw:
		tok, err := readRawToken(r)
		if err != nil {
			return err
		}
		c.Append(string(tok))
		return nil
	case DialectXML:
		return fmt.Errorf("%w: XML deserialization is not supported", ErrInvalidArgument)
	}
	return fmt.Errorf("%w: unknown dialect %d", ErrInvalidArgument, d)
}

func (s *String) TryDeserializeText(col column.Column, r *bufio.Reader, d Dialect, opts *FormatOptions) bool {
	return s.DeserializeText(col, r, d, opts) == nil
}
