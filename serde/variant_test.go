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
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-db/tessera/column"
)

// intStringFixture is the catalogue used by most tests: alternative 0 is
// Int32, alternative 1 is String.
type intStringFixture struct {
	codec *Variant
	col   *column.Variant
	ints  *column.Numeric[int32]
	strs  *column.String
}

func newIntStringFixture(t *testing.T) *intStringFixture {
	t.Helper()
	codec, err := NewVariant("Variant(Int32, String)", []Alternative{
		{Name: "Int32", Codec: NewNumber[int32]()},
		{Name: "String", Codec: NewString()},
	})
	require.NoError(t, err)
	ints := column.NewNumeric[int32]()
	strs := column.NewString()
	col, err := column.NewVariant(ints, strs)
	require.NoError(t, err)
	return &intStringFixture{codec: codec, col: col, ints: ints, strs: strs}
}

func (f *intStringFixture) appendInt(t *testing.T, v int32) {
	t.Helper()
	f.ints.Append(v)
	require.NoError(t, f.col.AppendDiscriminator(0))
}

func (f *intStringFixture) appendString(t *testing.T, v string) {
	t.Helper()
	f.strs.Append(v)
	require.NoError(t, f.col.AppendDiscriminator(1))
}

type variantSnapshot struct {
	Discs []column.Discriminator
	Ints  []int32
	Strs  []string
}

func snapshot(f *intStringFixture) variantSnapshot {
	return variantSnapshot{
		Discs: append([]column.Discriminator(nil), f.col.Discriminators()...),
		Ints:  append([]int32(nil), f.ints.Values()...),
		Strs:  append([]string(nil), f.strs.Values()...),
	}
}

func TestTextDeserializeOrder(t *testing.T) {
	alts := []Serialization{NewString(), NewNumber[int32](), NewBool(), NewUUID()}
	order := TextDeserializeOrder(alts)
	assert.Equal(t, []int{2, 3, 1, 0}, order, "bool, uuid, int32, string")

	// Deterministic across constructions.
	assert.Equal(t, order, TextDeserializeOrder(alts))

	// Narrower integers precede wider ones, floats follow integers.
	order = TextDeserializeOrder([]Serialization{NewNumber[float64](), NewNumber[int64](), NewNumber[int8]()})
	assert.Equal(t, []int{2, 1, 0}, order)

	// The permissive string grammar goes last regardless of position.
	order = TextDeserializeOrder([]Serialization{NewString(), NewNumber[int32]()})
	assert.Equal(t, []int{1, 0}, order)
	order = TextDeserializeOrder([]Serialization{NewNumber[int32](), NewString()})
	assert.Equal(t, []int{0, 1}, order)
}

func TestResolveEscapedTokens(t *testing.T) {
	f := newIntStringFixture(t)
	assert.Equal(t, []int{0, 1}, f.codec.TextOrder())

	for _, tok := range []string{"123", "abc", `\N`} {
		r := bufio.NewReader(strings.NewReader(tok))
		require.NoError(t, f.codec.DeserializeText(f.col, r, DialectEscaped, nil), "token %q", tok)
	}

	want := variantSnapshot{
		Discs: []column.Discriminator{0, 1, column.NullDiscriminator},
		Ints:  []int32{123},
		Strs:  []string{"abc"},
	}
	if diff := cmp.Diff(want, snapshot(f)); diff != "" {
		t.Fatalf("unexpected column contents (-want +got):\n%s", diff)
	}
	require.NoError(t, f.col.CheckPacking())
}

func TestResolutionPrefersNarrowGrammar(t *testing.T) {
	// String is declared first, yet a numeric token must land in Int32.
	codec, err := NewVariant("Variant(String, Int32)", []Alternative{
		{Name: "String", Codec: NewString()},
		{Name: "Int32", Codec: NewNumber[int32]()},
	})
	require.NoError(t, err)
	strs := column.NewString()
	ints := column.NewNumeric[int32]()
	col, err := column.NewVariant(strs, ints)
	require.NoError(t, err)

	r := bufio.NewReader(strings.NewReader("42"))
	require.NoError(t, codec.DeserializeText(col, r, DialectEscaped, nil))
	assert.Equal(t, []column.Discriminator{1}, col.Discriminators())
	assert.Equal(t, []int32{42}, ints.Values())
	assert.Equal(t, 0, strs.Len())
}

func TestResolutionFailureIsCleanAndHard(t *testing.T) {
	codec, err := NewVariant("Variant(Int32)", []Alternative{
		{Name: "Int32", Codec: NewNumber[int32]()},
	})
	require.NoError(t, err)
	ints := column.NewNumeric[int32]()
	col, err := column.NewVariant(ints)
	require.NoError(t, err)

	// Try entry point: recoverable boolean failure, nothing appended.
	r := bufio.NewReader(strings.NewReader("12x\tnext"))
	assert.False(t, codec.TryDeserializeText(col, r, DialectEscaped, nil))
	assert.Equal(t, 0, col.Len())
	assert.Equal(t, 0, ints.Len())

	// The cursor sits exactly past the materialized token.
	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "\tnext", string(rest))

	// Non-try entry point: hard error naming token and variant type.
	r = bufio.NewReader(strings.NewReader("12x"))
	err = codec.DeserializeText(col, r, DialectEscaped, nil)
	require.ErrorIs(t, err, ErrUnresolved)
	assert.Contains(t, err.Error(), "12x")
	assert.Contains(t, err.Error(), "Variant(Int32)")
}

func TestFailedTrialRollsBackPartialInsert(t *testing.T) {
	f := newIntStringFixture(t)
	// Under the quoted dialect "12a" is neither a full number nor a
	// quoted string. The Int32 trial parses "12", fails the
	// full-consumption rule and must be rolled back.
	r := bufio.NewReader(strings.NewReader("12a"))
	assert.False(t, f.codec.TryDeserializeText(f.col, r, DialectQuoted, nil))
	assert.Equal(t, 0, f.ints.Len())
	assert.Equal(t, 0, f.strs.Len())
	assert.Equal(t, 0, f.col.Len())
}

func TestCursorAfterSuccessfulResolution(t *testing.T) {
	f := newIntStringFixture(t)
	r := bufio.NewReader(strings.NewReader("abc\t456\n"))
	require.NoError(t, f.codec.DeserializeText(f.col, r, DialectEscaped, nil))
	b, err := r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte('\t'), b)
	require.NoError(t, f.codec.DeserializeText(f.col, r, DialectEscaped, nil))
	assert.Equal(t, []column.Discriminator{1, 0}, f.col.Discriminators())
	assert.Equal(t, []int32{456}, f.ints.Values())
}

func TestNullLiteralsPerDialect(t *testing.T) {
	cases := []struct {
		dialect Dialect
		literal string
	}{
		{DialectEscaped, `\N`},
		{DialectQuoted, "NULL"},
		{DialectCSV, `\N`},
		{DialectJSON, "null"},
		{DialectRaw, `\N`},
		{DialectWholeText, "NULL"},
	}
	for _, tc := range cases {
		t.Run(tc.dialect.String(), func(t *testing.T) {
			f := newIntStringFixture(t)
			r := bufio.NewReader(strings.NewReader(tc.literal))
			require.NoError(t, f.codec.DeserializeText(f.col, r, tc.dialect, nil))
			assert.Equal(t, []column.Discriminator{column.NullDiscriminator}, f.col.Discriminators())

			// And the serialize direction writes the same literal back.
			var buf bytes.Buffer
			require.NoError(t, f.codec.SerializeText(f.col, 0, &buf, tc.dialect, nil))
			assert.Equal(t, tc.literal, buf.String())
		})
	}
}

func TestQuotedCSVNullIsAString(t *testing.T) {
	// A quoted CSV field spelling the null literal is data, not null.
	f := newIntStringFixture(t)
	r := bufio.NewReader(strings.NewReader(`"\N"`))
	require.NoError(t, f.codec.DeserializeText(f.col, r, DialectCSV, nil))
	assert.Equal(t, []column.Discriminator{1}, f.col.Discriminators())
	assert.Equal(t, []string{`\N`}, f.strs.Values())
}

func TestCSVResolutionStopsAtDelimiter(t *testing.T) {
	f := newIntStringFixture(t)

	// The tokenizer bounds each field; a quoted field keeps its commas
	// and resolves whole, an unquoted one ends at the delimiter.
	r := bufio.NewReader(strings.NewReader(`7,"x,y",word`))
	for i := 0; i < 3; i++ {
		require.NoError(t, f.codec.DeserializeText(f.col, r, DialectCSV, nil))
		if b, err := r.ReadByte(); err == nil {
			require.Equal(t, byte(','), b)
		}
	}

	want := variantSnapshot{
		Discs: []column.Discriminator{0, 1, 1},
		Ints:  []int32{7},
		Strs:  []string{"x,y", "word"},
	}
	if diff := cmp.Diff(want, snapshot(f)); diff != "" {
		t.Fatalf("unexpected column contents (-want +got):\n%s", diff)
	}
	assert.True(t, inputExhausted(r))
}

func TestSerializeTextPerDialect(t *testing.T) {
	f := newIntStringFixture(t)
	f.appendInt(t, 7)
	f.appendString(t, "a\tb")
	f.appendString(t, "x,y")
	f.appendString(t, "p<q")

	check := func(row int, d Dialect, want string) {
		t.Helper()
		var buf bytes.Buffer
		require.NoError(t, f.codec.SerializeText(f.col, row, &buf, d, nil))
		assert.Equal(t, want, buf.String(), "row %d dialect %s", row, d)
	}

	check(0, DialectEscaped, "7")
	check(0, DialectJSON, "7")
	check(1, DialectEscaped, `a\tb`)
	check(1, DialectQuoted, "'a\tb'")
	check(1, DialectJSON, `"a\tb"`)
	check(2, DialectCSV, `"x,y"`)
	check(2, DialectEscaped, "x,y")
	check(3, DialectXML, "p&lt;q")
}

func TestJSONResolution(t *testing.T) {
	f := newIntStringFixture(t)
	for _, tok := range []string{`123`, `"abc"`, `null`} {
		r := bufio.NewReader(strings.NewReader(tok))
		require.NoError(t, f.codec.DeserializeText(f.col, r, DialectJSON, nil), "token %q", tok)
	}
	want := variantSnapshot{
		Discs: []column.Discriminator{0, 1, column.NullDiscriminator},
		Ints:  []int32{123},
		Strs:  []string{"abc"},
	}
	if diff := cmp.Diff(want, snapshot(f)); diff != "" {
		t.Fatalf("unexpected column contents (-want +got):\n%s", diff)
	}

	// A bare word is not valid JSON for any alternative.
	r := bufio.NewReader(strings.NewReader(`abc`))
	assert.False(t, f.codec.TryDeserializeText(f.col, r, DialectJSON, nil))
}

func TestSingleValueBinaryRoundTrip(t *testing.T) {
	f := newIntStringFixture(t)
	f.appendInt(t, -5)
	f.appendString(t, "hello")
	f.col.AppendNull()

	var buf bytes.Buffer
	for row := 0; row < f.col.Len(); row++ {
		require.NoError(t, f.codec.SerializeBinary(f.col, row, &buf))
	}

	out := newIntStringFixture(t)
	for i := 0; i < f.col.Len(); i++ {
		require.NoError(t, out.codec.DeserializeBinary(out.col, &buf))
	}
	if diff := cmp.Diff(snapshot(f), snapshot(out)); diff != "" {
		t.Fatalf("binary round trip mismatch (-want +got):\n%s", diff)
	}
	require.NoError(t, out.col.CheckPacking())
}

func TestBoxedValueRoundTrip(t *testing.T) {
	f := newIntStringFixture(t)
	values := []column.VariantValue{
		{Disc: 0, Value: int32(9)},
		{Disc: 1, Value: "v"},
		{Disc: column.NullDiscriminator},
	}
	var buf bytes.Buffer
	for _, v := range values {
		require.NoError(t, f.codec.SerializeValue(v, &buf))
	}
	for _, want := range values {
		got, err := f.codec.DeserializeValue(&buf)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestBulkWriteThenChunkedRead(t *testing.T) {
	f := newIntStringFixture(t)
	f.appendInt(t, 1)
	f.appendString(t, "x")
	f.appendInt(t, 2)

	streams := NewStreamSet(CompressionNone)
	require.NoError(t, SerializeColumn(f.codec, f.col, streams, f.col.Len()))

	// Read back in two chunks of size 2 and 1.
	out := newIntStringFixture(t)
	require.NoError(t, DeserializeColumn(out.codec, out.col, streams, 3, 2))

	want := variantSnapshot{
		Discs: []column.Discriminator{0, 1, 0},
		Ints:  []int32{1, 2},
		Strs:  []string{"x"},
	}
	if diff := cmp.Diff(want, snapshot(out)); diff != "" {
		t.Fatalf("unexpected column contents (-want +got):\n%s", diff)
	}
	require.NoError(t, out.col.CheckPacking())
}

func TestChunkedBulkEquivalence(t *testing.T) {
	build := func(t *testing.T) *intStringFixture {
		f := newIntStringFixture(t)
		f.appendInt(t, 10)
		f.appendString(t, "alpha")
		f.col.AppendNull()
		f.appendInt(t, -3)
		f.appendInt(t, 77)
		f.appendString(t, "beta")
		f.appendString(t, "")
		return f
	}

	src := build(t)
	rows := src.col.Len()
	want := snapshot(src)

	for _, chunks := range []struct {
		name        string
		write, read int
	}{
		{"whole/whole", rows, rows},
		{"whole/ones", rows, 1},
		{"twos/threes", 2, 3},
		{"ones/whole", 1, rows},
	} {
		t.Run(chunks.name, func(t *testing.T) {
			streams := NewStreamSet(CompressionNone)
			require.NoError(t, SerializeColumn(src.codec, src.col, streams, chunks.write))

			out := newIntStringFixture(t)
			require.NoError(t, DeserializeColumn(out.codec, out.col, streams, rows, chunks.read))
			if diff := cmp.Diff(want, snapshot(out)); diff != "" {
				t.Fatalf("partition %s mismatch (-want +got):\n%s", chunks.name, diff)
			}
			require.NoError(t, out.col.CheckPacking())
		})
	}
}

func TestZstdStreamRoundTrip(t *testing.T) {
	f := newIntStringFixture(t)
	for i := 0; i < 100; i++ {
		if i%3 == 0 {
			f.appendString(t, strings.Repeat("s", i%17))
		} else {
			f.appendInt(t, int32(i))
		}
	}

	streams := NewStreamSet(CompressionZstd)
	require.NoError(t, SerializeColumn(f.codec, f.col, streams, 16))

	out := newIntStringFixture(t)
	require.NoError(t, DeserializeColumn(out.codec, out.col, streams, f.col.Len(), 10))
	if diff := cmp.Diff(snapshot(f), snapshot(out)); diff != "" {
		t.Fatalf("zstd round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCorruptDiscriminatorAbortsRead(t *testing.T) {
	streams := NewStreamSet(CompressionNone)
	_, err := streams.Writer(discriminatorsPath(nil)).Write([]byte{7})
	require.NoError(t, err)

	f := newIntStringFixture(t)
	err = DeserializeColumn(f.codec, f.col, streams, 1, 1)
	require.ErrorIs(t, err, ErrCorruptStream)
	assert.Equal(t, 0, f.col.Len())
}

func TestEnumerateStreams(t *testing.T) {
	f := newIntStringFixture(t)
	var paths []string
	f.codec.EnumerateStreams(nil, func(p SubstreamPath) {
		paths = append(paths, p.String())
	})
	assert.Equal(t, []string{"discr", "alt(0,Int32)", "alt(1,String)"}, paths)
}

func TestSubstreamCacheReuse(t *testing.T) {
	f := newIntStringFixture(t)
	f.appendInt(t, 4)
	f.appendString(t, "c")

	streams := NewStreamSet(CompressionNone)
	require.NoError(t, SerializeColumn(f.codec, f.col, streams, 2))

	out := newIntStringFixture(t)
	opts := &DeserializeOptions{Getter: streams.Reader, Cache: NewSubstreamCache()}
	state, err := out.codec.DeserializeBulkStatePrefix(nil, opts)
	require.NoError(t, err)
	require.NoError(t, out.codec.DeserializeBulk(out.col, 2, nil, opts, state))
	assert.Equal(t, 2, out.col.Len())

	// A second traversal of the same paths in the same call tree must be
	// served entirely from the cache: the physical streams are gone.
	opts.Getter = func(SubstreamPath) io.Reader { return nil }
	require.NoError(t, out.codec.DeserializeBulk(out.col, 2, nil, opts, state))
	assert.Equal(t, 4, out.col.Len())
	assert.Equal(t, []int32{4, 4}, out.ints.Values())
	assert.Equal(t, []string{"c", "c"}, out.strs.Values())
	require.NoError(t, out.col.CheckPacking())
}

func TestBulkStateRejectsForeignState(t *testing.T) {
	f := newIntStringFixture(t)
	opts := &SerializeOptions{Getter: NewStreamSet(CompressionNone).Writer}
	err := f.codec.SerializeBulk(f.col, 0, 0, nil, opts, "not a state")
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestWholeTextResolution(t *testing.T) {
	f := newIntStringFixture(t)
	r := bufio.NewReader(strings.NewReader("anything goes\there"))
	require.NoError(t, f.codec.DeserializeText(f.col, r, DialectWholeText, nil))
	assert.Equal(t, []string{"anything goes\there"}, f.strs.Values())
	assert.True(t, inputExhausted(r))
}
