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
	"fmt"
	"io"

	"github.com/tidwall/gjson"

	"github.com/tessera-db/tessera/column"
	"github.com/tessera-db/tessera/internal/enc"
)

// Bool is the codec for boolean columns: one byte per value in binary
// form, the literals "true" and "false" in every text dialect.
type Bool struct{}

func NewBool() *Bool { return &Bool{} }

// TextWeight ranks the boolean grammar as the narrowest one.
func (s *Bool) TextWeight() int { return textWeightBool }

func (s *Bool) cast(col column.Column) (*column.Bool, error) {
	c, ok := col.(*column.Bool)
	if !ok {
		return nil, fmt.Errorf("%w: bool codec cannot serve column of type %T", ErrInvalidArgument, col)
	}
	return c, nil
}

func (s *Bool) EnumerateStreams(path SubstreamPath, visit StreamVisitor) {
	visit(path)
}

func (s *Bool) SerializeBulkStatePrefix(column.Column, SubstreamPath, *SerializeOptions) (State, error) {
	return nil, nil
}

func (s *Bool) SerializeBulkStateSuffix(State, SubstreamPath, *SerializeOptions) error {
	return nil
}

func (s *Bool) DeserializeBulkStatePrefix(SubstreamPath, *DeserializeOptions) (State, error) {
	return nil, nil
}

func (s *Bool) SerializeBulk(col column.Column, offset, limit int, path SubstreamPath, opts *SerializeOptions, _ State) error {
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
	buf := make([]byte, limit)
	for i, v := range c.Values()[offset : offset+limit] {
		if v {
			buf[i] = 1
		}
	}
	_, err = w.Write(buf)
	return err
}

func (s *Bool) DeserializeBulk(col column.Column, limit int, path SubstreamPath, opts *DeserializeOptions, _ State) error {
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
	r := opts.Getter(path)
	if r == nil {
		return nil
	}
	buf := make([]byte, limit)
	n, err := io.ReadFull(r, buf)
	if err == io.EOF {
		return nil
	}
	if err != nil && err != io.ErrUnexpectedEOF {
		return err
	}
	if n < limit {
		return fmt.Errorf("%w: short bool substream %s: got %d of %d values", ErrCorruptStream, path, n, limit)
	}
	read := make([]bool, limit)
	for i, b := range buf {
		read[i] = b != 0
	}
	c.Append(read...)
	opts.Cache.Put(path, column.NewBool(read...))
	return nil
}

func (s *Bool) SerializeBinary(col column.Column, row int, w io.Writer) error {
	c, err := s.cast(col)
	if err != nil {
		return err
	}
	return s.SerializeValue(c.Value(row), w)
}

func (s *Bool) DeserializeBinary(col column.Column, r io.Reader) error {
	c, err := s.cast(col)
	if err != nil {
		return err
	}
	v, err := s.DeserializeValue(r)
	if err != nil {
		return err
	}
	c.Append(v.(bool))
	return nil
}

func (s *Bool) SerializeValue(v any, w io.Writer) error {
	val, ok := v.(bool)
	if !ok {
		return fmt.Errorf("%w: bool codec cannot serialize value of type %T", ErrInvalidArgument, v)
	}
	b := []byte{0}
	if val {
		b[0] = 1
	}
	_, err := w.Write(b)
	return err
}

func (s *Bool) DeserializeValue(r io.Reader) (any, error) {
	b, err := enc.ReadByte(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading bool value: %v", ErrCorruptStream, err)
	}
	return b != 0, nil
}

func boolLiteral(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func (s *Bool) SerializeText(col column.Column, row int, w io.Writer, d Dialect, opts *FormatOptions) error {
	c, err := s.cast(col)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, boolLiteral(c.Value(row)))
	return err
}

func (s *Bool) DeserializeText(col column.Column, r *bufio.Reader, d Dialect, opts *FormatOptions) error {
	c, err := s.cast(col)
	if err != nil {
		return err
	}
	if d == DialectXML {
		return fmt.Errorf("%w: XML deserialization is not supported", ErrInvalidArgument)
	}
	if d == DialectJSON {
		tok, err := readJSONToken(r)
		if err != nil {
			return err
		}
		res := gjson.ParseBytes(tok)
		switch res.Type {
		case gjson.True:
			c.Append(true)
		case gjson.False:
			c.Append(false)
		default:
			return fmt.Errorf("%w: %q is not a JSON boolean", ErrUnresolved, tok)
		}
		return nil
	}
	tok, err := readLetters(r)
	if err != nil {
		return err
	}
	// Only the exact lowercase literals are boolean text. Accepting "1"
	// or "t" here would shadow the integer and string alternatives during
	// variant resolution.
	switch string(tok) {
	case "true":
		c.Append(true)
	case "false":
		c.Append(false)
	default:
		return fmt.Errorf("%w: %q is not a boolean", ErrUnresolved, tok)
	}
	return nil
}

func (s *Bool) TryDeserializeText(col column.Column, r *bufio.Reader, d Dialect, opts *FormatOptions) bool {
	return s.DeserializeText(col, r, d, opts) == nil
}

// readLetters consumes a run of ASCII letters.
func readLetters(r *bufio.Reader) ([]byte, error) {
	var out []byte
	for {
		b, err := r.ReadByte()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') {
			out = append(out, b)
			continue
		}
		r.UnreadByte()
		return out, nil
	}
}
