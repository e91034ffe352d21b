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

package column

import (
	"fmt"
)

// Discriminator names the alternative a Variant row currently holds.
type Discriminator = uint8

// NullDiscriminator marks a row holding no alternative at all.
const NullDiscriminator Discriminator = 0xFF

// MaxAlternatives is the largest number of alternatives a Variant column
// can declare, leaving NullDiscriminator out of the valid range.
const MaxAlternatives = int(NullDiscriminator)

// Variant is a column whose rows are tagged unions over a fixed list of
// alternative sub-columns. Values are stored densely: alternative i's
// sub-column holds only the values of rows whose discriminator equals i,
// in row order. The per-row offsets map each row to its slot inside its
// alternative so random access stays O(1).
type Variant struct {
	discs   []Discriminator
	offsets []int
	alts    []Column
	counts  []int
}

// VariantValue is a single Variant row pulled out of (or headed into) a
// column: the discriminator plus the boxed value. Value is nil when Disc
// is NullDiscriminator.
type VariantValue struct {
	Disc  Discriminator
	Value any
}

// NewVariant creates a Variant column over the given alternative
// sub-columns. The sub-columns must be empty; the alternative list is
// fixed for the column's lifetime.
func NewVariant(alts ...Column) (*Variant, error) {
	if len(alts) == 0 {
		return nil, fmt.Errorf("variant column requires at least one alternative")
	}
	if len(alts) > MaxAlternatives {
		return nil, fmt.Errorf("variant column supports at most %d alternatives, got %d", MaxAlternatives, len(alts))
	}
	return &Variant{alts: alts, counts: make([]int, len(alts))}, nil
}

func (v *Variant) Len() int             { return len(v.discs) }
func (v *Variant) NumAlternatives() int { return len(v.alts) }

// Alternative returns alternative i's dense sub-column.
func (v *Variant) Alternative(i int) Column { return v.alts[i] }

// Discriminators returns the discriminator sequence, one entry per row.
func (v *Variant) Discriminators() []Discriminator { return v.discs }

func (v *Variant) DiscriminatorAt(row int) Discriminator { return v.discs[row] }

// LocalIndex returns the row's slot within its alternative's sub-column.
// The result is meaningless for null rows.
func (v *Variant) LocalIndex(row int) int { return v.offsets[row] }

// ValueAt returns the row as a boxed VariantValue.
func (v *Variant) ValueAt(row int) any {
	d := v.discs[row]
	if d == NullDiscriminator {
		return VariantValue{Disc: NullDiscriminator}
	}
	return VariantValue{Disc: d, Value: v.alts[d].ValueAt(v.offsets[row])}
}

// AppendDiscriminator appends d to the discriminator sequence, recording
// the next free slot of d's sub-column as the row's local offset. The
// caller is responsible for having appended (or being about to append)
// exactly one value to that sub-column.
func (v *Variant) AppendDiscriminator(d Discriminator) error {
	if d != NullDiscriminator && int(d) >= len(v.alts) {
		return fmt.Errorf("discriminator %d out of range for %d alternatives", d, len(v.alts))
	}
	v.discs = append(v.discs, d)
	if d == NullDiscriminator {
		v.offsets = append(v.offsets, 0)
		return nil
	}
	v.offsets = append(v.offsets, v.counts[d])
	v.counts[d]++
	return nil
}

// AppendNull appends a row holding no alternative.
func (v *Variant) AppendNull() {
	v.discs = append(v.discs, NullDiscriminator)
	v.offsets = append(v.offsets, 0)
}

// CountInRange returns, for each alternative, how many rows inside
// [offset, offset+limit) carry its discriminator. A single linear scan.
func (v *Variant) CountInRange(offset, limit int) []int {
	counts := make([]int, len(v.alts))
	for _, d := range v.discs[offset : offset+limit] {
		if d != NullDiscriminator {
			counts[d]++
		}
	}
	return counts
}

// Truncate shortens the column to n rows, truncating each alternative
// sub-column to match.
func (v *Variant) Truncate(n int) {
	for row := len(v.discs) - 1; row >= n; row-- {
		if d := v.discs[row]; d != NullDiscriminator {
			v.counts[d]--
			v.alts[d].Truncate(v.counts[d])
		}
	}
	v.discs = v.discs[:n]
	v.offsets = v.offsets[:n]
}

// Reset truncates the column and every alternative sub-column.
func (v *Variant) Reset() {
	v.discs = v.discs[:0]
	v.offsets = v.offsets[:0]
	for i, alt := range v.alts {
		alt.Reset()
		v.counts[i] = 0
	}
}

// CheckPacking validates the dense-packing invariant: every alternative's
// sub-column length equals the number of rows tagged with it and the k-th
// such row maps to slot k.
func (v *Variant) CheckPacking() error {
	counts := make([]int, len(v.alts))
	for row, d := range v.discs {
		if d == NullDiscriminator {
			continue
		}
		if int(d) >= len(v.alts) {
			return fmt.Errorf("row %d: discriminator %d out of range", row, d)
		}
		if v.offsets[row] != counts[d] {
			return fmt.Errorf("row %d: local offset %d, want %d", row, v.offsets[row], counts[d])
		}
		counts[d]++
	}
	for i, alt := range v.alts {
		if alt.Len() != counts[i] {
			return fmt.Errorf("alternative %d: sub-column holds %d values, discriminators reference %d", i, alt.Len(), counts[i])
		}
	}
	return nil
}
