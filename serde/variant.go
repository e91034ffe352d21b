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

	"github.com/tessera-db/tessera/column"
	"github.com/tessera-db/tessera/internal/enc"
)

// Alternative pairs one variant alternative's codec with its display
// name.
type Alternative struct {
	Name  string
	Codec Serialization
}

// Variant is the codec for tagged-union columns. Physically a Variant
// column is one flat discriminator substream (one byte per row, in row
// order) plus, per alternative, whatever substreams that alternative's
// own codec defines, holding only its densely packed values.
//
// The alternative catalogue and the text resolution order are fixed at
// construction; a Variant codec is immutable and safe for concurrent use.
// Bulk state objects returned by the prefix calls are not.
type Variant struct {
	alts      []Serialization
	names     []string
	textOrder []int
	// name is the variant type's display name, carried into error
	// messages.
	name string
}

// NewVariant builds a Variant codec over the given alternative catalogue.
// name is the variant type's display name used in diagnostics.
func NewVariant(name string, alts []Alternative) (*Variant, error) {
	if len(alts) == 0 {
		return nil, fmt.Errorf("%w: variant requires at least one alternative", ErrInvalidArgument)
	}
	if len(alts) > column.MaxAlternatives {
		return nil, fmt.Errorf("%w: variant supports at most %d alternatives, got %d",
			ErrInvalidArgument, column.MaxAlternatives, len(alts))
	}
	s := &Variant{name: name}
	for _, alt := range alts {
		s.alts = append(s.alts, alt.Codec)
		s.names = append(s.names, alt.Name)
	}
	s.textOrder = TextDeserializeOrder(s.alts)
	return s, nil
}

func (s *Variant) Name() string         { return s.name }
func (s *Variant) NumAlternatives() int { return len(s.alts) }

func (s *Variant) AlternativeName(i int) string { return s.names[i] }

// TextOrder returns a copy of the fixed trial permutation.
func (s *Variant) TextOrder() []int {
	out := make([]int, len(s.textOrder))
	copy(out, s.textOrder)
	return out
}

func (s *Variant) cast(col column.Column) (*column.Variant, error) {
	c, ok := col.(*column.Variant)
	if !ok {
		return nil, fmt.Errorf("%w: variant %s cannot serve column of type %T", ErrInvalidArgument, s.name, col)
	}
	if c.NumAlternatives() != len(s.alts) {
		return nil, fmt.Errorf("%w: variant %s has %d alternatives, column has %d",
			ErrInvalidArgument, s.name, len(s.alts), c.NumAlternatives())
	}
	return c, nil
}

// altErr annotates a nested codec failure with the owning alternative's
// name and the variant's display name; the cause is left unwrapped
// otherwise.
func (s *Variant) altErr(i int, err error) error {
	return fmt.Errorf("variant %s: alternative %s: %w", s.name, s.names[i], err)
}

// checkDiscriminator validates a discriminator byte read from a binary
// stream.
func (s *Variant) checkDiscriminator(d column.Discriminator) error {
	if d != column.NullDiscriminator && int(d) >= len(s.alts) {
		return fmt.Errorf("%w: variant %s: discriminator %d out of range [0, %d)",
			ErrCorruptStream, s.name, d, len(s.alts))
	}
	return nil
}

// EnumerateStreams visits the discriminator stream, then every leaf
// stream of every alternative under its tagged sub-path.
func (s *Variant) EnumerateStreams(path SubstreamPath, visit StreamVisitor) {
	visit(discriminatorsPath(path))
	for i, alt := range s.alts {
		alt.EnumerateStreams(variantElementPath(path, i, s.names[i]), visit)
	}
}

// variantBulkState bundles one persistent sub-state per alternative. The
// discriminator stream itself is stateless.
type variantBulkState struct {
	states []State
}

func (s *Variant) SerializeBulkStatePrefix(col column.Column, path SubstreamPath, opts *SerializeOptions) (State, error) {
	c, err := s.cast(col)
	if err != nil {
		return nil, err
	}
	st := &variantBulkState{states: make([]State, len(s.alts))}
	for i, alt := range s.alts {
		sub, err := alt.SerializeBulkStatePrefix(c.Alternative(i), variantElementPath(path, i, s.names[i]), opts)
		if err != nil {
			return nil, s.altErr(i, err)
		}
		st.states[i] = sub
	}
	return st, nil
}

func (s *Variant) SerializeBulkStateSuffix(state State, path SubstreamPath, opts *SerializeOptions) error {
	st, err := s.bulkState(state)
	if err != nil {
		return err
	}
	for i, alt := range s.alts {
		if err := alt.SerializeBulkStateSuffix(st.states[i], variantElementPath(path, i, s.names[i]), opts); err != nil {
			return s.altErr(i, err)
		}
	}
	return nil
}

func (s *Variant) DeserializeBulkStatePrefix(path SubstreamPath, opts *DeserializeOptions) (State, error) {
	st := &variantBulkState{states: make([]State, len(s.alts))}
	for i, alt := range s.alts {
		sub, err := alt.DeserializeBulkStatePrefix(variantElementPath(path, i, s.names[i]), opts)
		if err != nil {
			return nil, s.altErr(i, err)
		}
		st.states[i] = sub
	}
	return st, nil
}

func (s *Variant) bulkState(state State) (*variantBulkState, error) {
	st, ok := state.(*variantBulkState)
	if !ok {
		return nil, fmt.Errorf("%w: variant %s handed foreign bulk state %T", ErrInvalidArgument, s.name, state)
	}
	if len(st.states) != len(s.alts) {
		return nil, fmt.Errorf("%w: variant %s bulk state tracks %d alternatives, want %d",
			ErrInvalidArgument, s.name, len(st.states), len(s.alts))
	}
	return st, nil
}

// nestedRange is one alternative's slice of its dense sub-column that a
// row range maps to.
type nestedRange struct {
	offset, limit int
}

// resolveNestedRanges scans the discriminator sequence once over
// [offset, offset+limit) and produces, per alternative, the sub-range of
// its dense sub-column covered by those rows. Runs in O(limit).
func resolveNestedRanges(c *column.Variant, offset, limit int) []nestedRange {
	ranges := make([]nestedRange, c.NumAlternatives())
	discs := c.Discriminators()
	for row := offset; row < offset+limit; row++ {
		d := discs[row]
		if d == column.NullDiscriminator {
			continue
		}
		if ranges[d].limit == 0 {
			ranges[d].offset = c.LocalIndex(row)
		}
		ranges[d].limit++
	}
	return ranges
}

// SerializeBulk writes rows [offset, offset+limit): the raw discriminator
// bytes first, then each alternative's slice of its dense sub-column
// through that alternative's own bulk writer and persistent sub-state.
func (s *Variant) SerializeBulk(col column.Column, offset, limit int, path SubstreamPath, opts *SerializeOptions, state State) error {
	c, err := s.cast(col)
	if err != nil {
		return err
	}
	if offset < 0 || limit < 0 || offset+limit > c.Len() {
		return fmt.Errorf("%w: range [%d, %d) out of column bounds %d", ErrInvalidArgument, offset, offset+limit, c.Len())
	}
	st, err := s.bulkState(state)
	if err != nil {
		return err
	}
	if w := opts.Getter(discriminatorsPath(path)); w != nil && limit > 0 {
		if _, err := w.Write(c.Discriminators()[offset : offset+limit]); err != nil {
			return err
		}
	}
	for i, rng := range resolveNestedRanges(c, offset, limit) {
		if rng.limit == 0 {
			continue
		}
		err := s.alts[i].SerializeBulk(c.Alternative(i), rng.offset, rng.limit,
			variantElementPath(path, i, s.names[i]), opts, st.states[i])
		if err != nil {
			return s.altErr(i, err)
		}
	}
	return nil
}

// DeserializeBulk reads up to limit rows: the discriminator bytes first
// (reusing the substream cache when the same path was already
// materialized in this call tree), extending col with the tagged rows,
// then exactly the number of rows each alternative's discriminators
// reference. An out-of-range discriminator aborts the whole read.
func (s *Variant) DeserializeBulk(col column.Column, limit int, path SubstreamPath, opts *DeserializeOptions, state State) error {
	c, err := s.cast(col)
	if err != nil {
		return err
	}
	st, err := s.bulkState(state)
	if err != nil {
		return err
	}
	discs, err := s.readDiscriminators(limit, path, opts)
	if err != nil {
		return err
	}
	if len(discs) == 0 {
		return nil
	}

	base := c.Len()
	for _, d := range discs {
		if err := c.AppendDiscriminator(d); err != nil {
			return err
		}
	}
	for i, n := range c.CountInRange(base, len(discs)) {
		if n == 0 {
			continue
		}
		err := s.alts[i].DeserializeBulk(c.Alternative(i), n,
			variantElementPath(path, i, s.names[i]), opts, st.states[i])
		if err != nil {
			return s.altErr(i, err)
		}
	}
	return nil
}

// readDiscriminators reads this chunk's discriminator bytes, consulting
// the cache first, and validates every value. A short stream yields a
// short chunk; a missing stream yields none.
func (s *Variant) readDiscriminators(limit int, path SubstreamPath, opts *DeserializeOptions) ([]column.Discriminator, error) {
	discPath := discriminatorsPath(path)
	if cached, ok := opts.Cache.Get(discPath); ok {
		cc, ok := cached.(*column.Numeric[column.Discriminator])
		if !ok {
			return nil, fmt.Errorf("%w: cached substream %s holds %T", ErrInvalidArgument, discPath, cached)
		}
		return cc.Values(), nil
	}
	r := opts.Getter(discPath)
	if r == nil || limit == 0 {
		return nil, nil
	}
	buf := make([]column.Discriminator, limit)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	buf = buf[:n]
	for _, d := range buf {
		if err := s.checkDiscriminator(d); err != nil {
			return nil, err
		}
	}
	opts.Cache.Put(discPath, column.NewNumeric(buf...))
	return buf, nil
}

// SerializeBinary writes one row: the discriminator byte, then, unless
// the row is null, the row's value through its alternative's own writer.
func (s *Variant) SerializeBinary(col column.Column, row int, w io.Writer) error {
	c, err := s.cast(col)
	if err != nil {
		return err
	}
	d := c.DiscriminatorAt(row)
	if _, err := w.Write([]byte{d}); err != nil {
		return err
	}
	if d == column.NullDiscriminator {
		return nil
	}
	if err := s.alts[d].SerializeBinary(c.Alternative(int(d)), c.LocalIndex(row), w); err != nil {
		return s.altErr(int(d), err)
	}
	return nil
}

// DeserializeBinary reads one row: discriminator first, then the value
// through its alternative's reader, tagging the row before insertion.
func (s *Variant) DeserializeBinary(col column.Column, r io.Reader) error {
	c, err := s.cast(col)
	if err != nil {
		return err
	}
	d, err := enc.ReadByte(r)
	if err != nil {
		return fmt.Errorf("%w: variant %s: reading discriminator: %v", ErrCorruptStream, s.name, err)
	}
	if err := s.checkDiscriminator(d); err != nil {
		return err
	}
	if d == column.NullDiscriminator {
		c.AppendNull()
		return nil
	}
	if err := s.alts[d].DeserializeBinary(c.Alternative(int(d)), r); err != nil {
		return s.altErr(int(d), err)
	}
	return c.AppendDiscriminator(d)
}

// SerializeValue writes one boxed column.VariantValue.
func (s *Variant) SerializeValue(v any, w io.Writer) error {
	vv, ok := v.(column.VariantValue)
	if !ok {
		return fmt.Errorf("%w: variant %s cannot serialize value of type %T", ErrInvalidArgument, s.name, v)
	}
	if vv.Disc != column.NullDiscriminator && int(vv.Disc) >= len(s.alts) {
		return fmt.Errorf("%w: discriminator %d out of range for variant %s", ErrInvalidArgument, vv.Disc, s.name)
	}
	if _, err := w.Write([]byte{vv.Disc}); err != nil {
		return err
	}
	if vv.Disc == column.NullDiscriminator {
		return nil
	}
	if err := s.alts[vv.Disc].SerializeValue(vv.Value, w); err != nil {
		return s.altErr(int(vv.Disc), err)
	}
	return nil
}

// DeserializeValue reads one boxed column.VariantValue.
func (s *Variant) DeserializeValue(r io.Reader) (any, error) {
	d, err := enc.ReadByte(r)
	if err != nil {
		return nil, fmt.Errorf("%w: variant %s: reading discriminator: %v", ErrCorruptStream, s.name, err)
	}
	if err := s.checkDiscriminator(d); err != nil {
		return nil, err
	}
	if d == column.NullDiscriminator {
		return column.VariantValue{Disc: column.NullDiscriminator}, nil
	}
	val, err := s.alts[d].DeserializeValue(r)
	if err != nil {
		return nil, s.altErr(int(d), err)
	}
	return column.VariantValue{Disc: d, Value: val}, nil
}

// SerializeText writes one row under the dialect: the dialect's null
// representation for null rows, otherwise the alternative's own text
// form. The discriminator disambiguates; no resolution is involved.
func (s *Variant) SerializeText(col column.Column, row int, w io.Writer, d Dialect, opts *FormatOptions) error {
	c, err := s.cast(col)
	if err != nil {
		return err
	}
	disc := c.DiscriminatorAt(row)
	if disc == column.NullDiscriminator {
		return writeNull(w, d, opts)
	}
	if err := s.alts[disc].SerializeText(c.Alternative(int(disc)), c.LocalIndex(row), w, d, opts); err != nil {
		return s.altErr(int(disc), err)
	}
	return nil
}

// DeserializeText reads one token under the dialect and resolves which
// alternative it belongs to. Failure to resolve is a hard error naming
// the token and the variant type.
func (s *Variant) DeserializeText(col column.Column, r *bufio.Reader, d Dialect, opts *FormatOptions) error {
	c, err := s.cast(col)
	if err != nil {
		return err
	}
	if d == DialectXML {
		return fmt.Errorf("%w: XML deserialization is not supported", ErrInvalidArgument)
	}
	tok, err := readToken(r, d, opts)
	if err != nil {
		return err
	}
	if !s.resolveToken(c, tok, d, opts) {
		return fmt.Errorf("%w: %q does not match any alternative of variant %s under the %s dialect",
			ErrUnresolved, tok.data, s.name, d)
	}
	return nil
}

// TryDeserializeText is the recoverable form of DeserializeText. The
// token is still consumed from r whether or not it resolves.
func (s *Variant) TryDeserializeText(col column.Column, r *bufio.Reader, d Dialect, opts *FormatOptions) bool {
	c, err := s.cast(col)
	if err != nil {
		return false
	}
	if d == DialectXML {
		return false
	}
	tok, err := readToken(r, d, opts)
	if err != nil {
		return false
	}
	return s.resolveToken(c, tok, d, opts)
}

// resolveToken decides which alternative (or null) a materialized token
// represents. The null literal wins outright; otherwise alternatives are
// tried in the fixed deserialize order, each against a fresh reader over
// the token. A trial commits only if it succeeds and consumed the whole
// token; a partial insertion from a failed trial is rolled back. No
// fallback: an unresolved token resolves to nothing.
func (s *Variant) resolveToken(c *column.Variant, tok token, d Dialect, opts *FormatOptions) bool {
	if isNullToken(tok, d, opts) {
		c.AppendNull()
		return true
	}
	for _, idx := range s.textOrder {
		sub := c.Alternative(idx)
		prev := sub.Len()
		fresh := tok.reader()
		if s.alts[idx].TryDeserializeText(sub, fresh, d, opts) && inputExhausted(fresh) {
			// The append cannot fail: idx is a catalogue index.
			c.AppendDiscriminator(column.Discriminator(idx))
			return true
		}
		if sub.Len() > prev {
			sub.Truncate(prev)
		}
	}
	return false
}
