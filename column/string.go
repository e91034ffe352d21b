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

// String is a dense column of variable-length strings.
type String struct {
	values []string
}

func NewString(values ...string) *String {
	return &String{values: values}
}

func (c *String) Len() int             { return len(c.values) }
func (c *String) ValueAt(i int) any    { return c.values[i] }
func (c *String) Value(i int) string   { return c.values[i] }
func (c *String) Values() []string     { return c.values }
func (c *String) Append(vals ...string) { c.values = append(c.values, vals...) }
func (c *String) Truncate(n int)        { c.values = c.values[:n] }
func (c *String) Reset()                { c.values = c.values[:0] }

// Bool is a dense column of booleans.
type Bool struct {
	values []bool
}

func NewBool(values ...bool) *Bool {
	return &Bool{values: values}
}

func (c *Bool) Len() int            { return len(c.values) }
func (c *Bool) ValueAt(i int) any   { return c.values[i] }
func (c *Bool) Value(i int) bool    { return c.values[i] }
func (c *Bool) Values() []bool      { return c.values }
func (c *Bool) Append(vals ...bool) { c.values = append(c.values, vals...) }
func (c *Bool) Truncate(n int)      { c.values = c.values[:n] }
func (c *Bool) Reset()              { c.values = c.values[:0] }
