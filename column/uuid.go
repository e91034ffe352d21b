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

import "github.com/google/uuid"

// UUID is a dense column of 16-byte UUID values.
type UUID struct {
	values []uuid.UUID
}

func NewUUID(values ...uuid.UUID) *UUID {
	return &UUID{values: values}
}

func (c *UUID) Len() int                 { return len(c.values) }
func (c *UUID) ValueAt(i int) any        { return c.values[i] }
func (c *UUID) Value(i int) uuid.UUID    { return c.values[i] }
func (c *UUID) Values() []uuid.UUID      { return c.values }
func (c *UUID) Append(vals ...uuid.UUID) { c.values = append(c.values, vals...) }
func (c *UUID) Truncate(n int)           { c.values = c.values[:n] }
func (c *UUID) Reset()                   { c.values = c.values[:0] }
