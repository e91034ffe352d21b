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
	"golang.org/x/exp/constraints"
)

// NumericValue is the type set of values a Numeric column can hold.
type NumericValue interface {
	constraints.Integer | constraints.Float
}

// Numeric is a dense column of fixed-width numeric values.
type Numeric[T NumericValue] struct {
	values []T
}

func NewNumeric[T NumericValue](values ...T) *Numeric[T] {
	return &Numeric[T]{values: values}
}

func (c *Numeric[T]) Len() int           { return len(c.values) }
func (c *Numeric[T]) ValueAt(i int) any  { return c.values[i] }
func (c *Numeric[T]) Value(i int) T      { return c.values[i] }
func (c *Numeric[T]) Values() []T        { return c.values }
func (c *Numeric[T]) Append(vals ...T)   { c.values = append(c.values, vals...) }
func (c *Numeric[T]) Truncate(n int)     { c.values = c.values[:n] }
func (c *Numeric[T]) Reset()             { c.values = c.values[:0] }
