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
	"reflect"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/tessera-db/tessera/column"
)

// Number is the codec for fixed-width numeric columns. Binary form is the
// raw little-endian value; bulk form is one flat substream of those
// values. The numeric kind is decided once at construction, never per
// call.
type Number[T column.NumericValue] struct {
	bits    int
	isFloat bool
	signed  bool
}

func NewNumber[T column.NumericValue]() *Number[T] {
	var zero T
	typ := reflect.TypeOf(zero)
	k := typ.Kind()
	return &Number[T]{
		bits:    typ.Bits(),
		isFloat: k == reflect.Float32 || k == reflect.Float64,
		signed:  k >= reflect.Int && k <= reflect.Int64,
	}
}

func (s *Number[T]) cast(col column.Column) (*column.Numeric[T], error) {
	c, ok := col.(*column.Numeric[T])
	if !ok {
		return nil, fmt.Errorf("%w: numeric codec cannot serve column of type %T", ErrInvalidArgument, col)
	}
	return c, nil
}

// TextWeight ranks narrower integer grammars ahead of wider ones and all
// of them ahead of floats.
func (s *Number[T]) TextWeight() int {
	if s.isFloat {
		return textWeightFloat + s.bits/8
	}
	return textWeightInteger + s.bits/8
}

func (s *Number[T]) EnumerateStreams(path SubstreamPath, visit StreamVisitor) {
	visit(path)
}

func (s *Number[T]) SerializeBulkStatePrefix(column.Column, SubstreamPath, *SerializeOptions) (State, error) {
	return nil, nil
}

func (s *Number[T]) SerializeBulkStateSuffix(State, SubstreamPath, *SerializeOptions) error {
	return nil
}

func (s *Number[T]) DeserializeBulkStatePrefix(SubstreamPath, *DeserializeOptions) (State, error) {
	return nil, nil
}

func (s *Number[T]) SerializeBulk(col column.Column, offset, limit int, path SubstreamPath, opts *SerializeOptions, _ State) error {
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
	return binary.Write(w, binary.LittleEndian, c.Values()[offset:offset+limit])
}

func (s *Number[T]) DeserializeBulk(col column.Column, limit int, path SubstreamPath, opts *DeserializeOptions, _ State) error {
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
	buf := make([]T, limit)
	if err := binary.Read(r, binary.LittleEndian, buf); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("%w: short numeric substream %s: %v", ErrCorruptStream, path, err)
	}
	c.Append(buf...)
	opts.Cache.Put(path, column.NewNumeric(buf...))
	return nil
}

func (s *Number[T]) SerializeBinary(col column.Column, row int, w io.Writer) error {
	c, err := s.cast(col)
	if err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, c.Value(row))
}

func (s *Number[T]) DeserializeBinary(col column.Column, r io.Reader) error {
	c, err := s.cast(col)
	if err != nil {
		return err
	}
	var v T
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return fmt.Errorf("%w: reading numeric value: %v", ErrCorruptStream, err)
	}
	c.Append(v)
	return nil
}

func (s *Number[T]) SerializeValue(v any, w io.Writer) error {
	val, ok := v.(T)
	if !ok {
		return fmt.Errorf("%w: numeric codec cannot serialize value of type %T", ErrInvalidArgument, v)
	}
	return binary.Write(w, binary.LittleEndian, val)
}

func (s *Number[T]) DeserializeValue(r io.Reader) (any, error) {
	var v T
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return nil, fmt.Errorf("%w: reading numeric value: %v", ErrCorruptStream, err)
	}
	return v, nil
}

func (s *Number[T]) formatValue(v T) string {
	switch {
	case s.isFloat:
		return strconv.FormatFloat(float64(v), 'g', -1, s.bits)
	case s.signed:
		return strconv.FormatInt(int64(v), 10)
	default:
		return strconv.FormatUint(uint64(v), 10)
	}
}

func (s *Number[T]) parseValue(tok string) (T, error) {
	var zero T
	if tok == "" {
		return zero, fmt.Errorf("empty numeric token")
	}
	switch {
	case s.isFloat:
		f, err := strconv.ParseFloat(tok, s.bits)
		if err != nil {
			return zero, err
		}
		return T(f), nil
	case s.signed:
		i, err := strconv.ParseInt(tok, 10, s.bits)
		if err != nil {
			return zero, err
		}
		return T(i), nil
	default:
		u, err := strconv.ParseUint(tok, 10, s.bits)
		if err != nil {
			return zero, err
		}
		return T(u), nil
	}
}

func (s *Number[T]) SerializeText(col column.Column, row int, w io.Writer, d Dialect, opts *FormatOptions) error {
	c, err := s.cast(col)
	if err != nil {
		return err
	}
	// Numbers carry no characters needing escaping, so every dialect gets
	// the plain decimal rendering.
	_, err = io.WriteString(w, s.formatValue(c.Value(row)))
	return err
}

func (s *Number[T]) DeserializeText(col column.Column, r *bufio.Reader, d Dialect, opts *FormatOptions) error {
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
		var v T
		if err := json.Unmarshal(tok, &v); err != nil {
			return fmt.Errorf("parsing %q as %d-bit number: %w", tok, s.bits, err)
		}
		c.Append(v)
		return nil
	}
	tok, err := s.readNumberToken(r)
	if err != nil {
		return err
	}
	v, err := s.parseValue(string(tok))
	if err != nil {
		return fmt.Errorf("parsing %q as %d-bit number: %w", tok, s.bits, err)
	}
	c.Append(v)
	return nil
}

func (s *Number[T]) TryDeserializeText(col column.Column, r *bufio.Reader, d Dialect, opts *FormatOptions) bool {
	return s.DeserializeText(col, r, d, opts) == nil
}

// readNumberToken consumes the longest prefix of r that can belong to a
// decimal number of this codec's kind. Anything after it stays unread.
func (s *Number[T]) readNumberToken(r *bufio.Reader) ([]byte, error) {
	var out []byte
	if b, err := r.ReadByte(); err == nil {
		if b == '+' || b == '-' {
			out = append(out, b)
		} else {
			r.UnreadByte()
		}
	} else if err != io.EOF {
		return nil, err
	}
	afterExp := false
	for {
		b, err := r.ReadByte()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		switch {
		case b >= '0' && b <= '9':
			afterExp = false
		case s.isFloat && (b == '.'):
		case s.isFloat && (b == 'e' || b == 'E'):
			afterExp = true
		case s.isFloat && afterExp && (b == '+' || b == '-'):
			afterExp = false
		default:
			r.UnreadByte()
			return out, nil
		}
		out = append(out, b)
	}
}
