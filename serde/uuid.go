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

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/tessera-db/tessera/column"
	"github.com/tessera-db/tessera/internal/enc"
)

// UUID is the codec for 16-byte UUID columns. Binary form is the raw 16
// bytes; text form is the canonical 36-character rendering, quoted like a
// string in the quoted and JSON dialects.
type UUID struct{}

func NewUUID() *UUID { return &UUID{} }

// TextWeight ranks the UUID grammar just behind booleans: the canonical
// form matches almost nothing else.
func (s *UUID) TextWeight() int { return textWeightUUID }

func (s *UUID) cast(col column.Column) (*column.UUID, error) {
	c, ok := col.(*column.UUID)
	if !ok {
		return nil, fmt.Errorf("%w: uuid codec cannot serve column of type %T", ErrInvalidArgument, col)
	}
	return c, nil
}

func (s *UUID) EnumerateStreams(path SubstreamPath, visit StreamVisitor) {
	visit(path)
}

func (s *UUID) SerializeBulkStatePrefix(column.Column, SubstreamPath, *SerializeOptions) (State, error) {
	return nil, nil
}

func (s *UUID) SerializeBulkStateSuffix(State, SubstreamPath, *SerializeOptions) error {
	return nil
}

func (s *UUID) DeserializeBulkStatePrefix(SubstreamPath, *DeserializeOptions) (State, error) {
	return nil, nil
}

func (s *UUID) SerializeBulk(col column.Column, offset, limit int, path SubstreamPath, opts *SerializeOptions, _ State) error {
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
	for _, v := range c.Values()[offset : offset+limit] {
		if _, err := w.Write(v[:]); err != nil {
			return err
		}
	}
	return nil
}

func (s *UUID) DeserializeBulk(col column.Column, limit int, path SubstreamPath, opts *DeserializeOptions, _ State) error {
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
	read := make([]uuid.UUID, 0, limit)
	for i := 0; i < limit; i++ {
		var buf [16]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			if err == io.EOF && i == 0 {
				return nil
			}
			return fmt.Errorf("%w: short uuid substream %s: %v", ErrCorruptStream, path, err)
		}
		read = append(read, uuid.UUID(buf))
	}
	c.Append(read...)
	opts.Cache.Put(path, column.NewUUID(read...))
	return nil
}

func (s *UUID) SerializeBinary(col column.Column, row int, w io.Writer) error {
	c, err := s.cast(col)
	if err != nil {
		return err
	}
	return s.SerializeValue(c.Value(row), w)
}

func (s *UUID) DeserializeBinary(col column.Column, r io.Reader) error {
	c, err := s.cast(col)
	if err != nil {
		return err
	}
	v, err := s.DeserializeValue(r)
	if err != nil {
		return err
	}
	c.Append(v.(uuid.UUID))
	return nil
}

func (s *UUID) SerializeValue(v any, w io.Writer) error {
	val, ok := v.(uuid.UUID)
	if !ok {
		return fmt.Errorf("%w: uuid codec cannot serialize value of type %T", ErrInvalidArgument, v)
	}
	_, err := w.Write(val[:])
	return err
}

func (s *UUID) DeserializeValue(r io.Reader) (any, error) {
	buf, err := enc.ReadFull(r, 16)
	if err != nil {
		return nil, fmt.Errorf("%w: reading uuid value: %v", ErrCorruptStream, err)
	}
	return uuid.UUID(buf), nil
}

func (s *UUID) SerializeText(col column.Column, row int, w io.Writer, d Dialect, opts *FormatOptions) error {
	c, err := s.cast(col)
	if err != nil {
		return err
	}
	v := c.Value(row).String()
	switch d {
	case DialectQuoted:
		return writeQuotedText(w, v)
	case DialectJSON:
		_, err := fmt.Fprintf(w, "%q", v)
		return err
	default:
		_, err := io.WriteString(w, v)
		return err
	}
}

func (s *UUID) DeserializeText(col column.Column, r *bufio.Reader, d Dialect, opts *FormatOptions) error {
	c, err := s.cast(col)
	if err != nil {
		return err
	}
	var tok string
	switch d {
	case DialectXML:
		return fmt.Errorf("%w: XML deserialization is not supported", ErrInvalidArgument)
	case DialectQuoted:
		raw, err := readQuotedToken(r)
		if err != nil {
			return err
		}
		v, ok := unquoteText(raw)
		if !ok {
			return fmt.Errorf("%w: %q is not a quoted uuid", ErrUnresolved, raw)
		}
		tok = v
	case DialectJSON:
		raw, err := readJSONToken(r)
		if err != nil {
			return err
		}
		res := gjson.ParseBytes(raw)
		if res.Type != gjson.String {
			return fmt.Errorf("%w: %q is not a JSON string", ErrUnresolved, raw)
		}
		tok = res.String()
	default:
		raw, err := readUUIDChars(r)
		if err != nil {
			return err
		}
		tok = string(raw)
	}
	v, err := uuid.Parse(tok)
	if err != nil {
		return fmt.Errorf("%w: %q is not a uuid: %v", ErrUnresolved, tok, err)
	}
	c.Append(v)
	return nil
}

func (s *UUID) TryDeserializeText(col column.Column, r *bufio.Reader, d Dialect, opts *FormatOptions) bool {
	return s.DeserializeText(col, r, d, opts) == nil
}

// readUUIDChars consumes a run of hex digits and dashes.
func readUUIDChars(r *bufio.Reader) ([]byte, error) {
	var out []byte
	for {
		b, err := r.ReadByte()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		switch {
		case b >= '0' && b <= '9', b >= 'a' && b <= 'f', b >= 'A' && b <= 'F', b == '-':
			out = append(out, b)
		default:
			r.UnreadByte()
			return out, nil
		}
	}
}
