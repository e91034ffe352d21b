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

// Package column provides the in-memory column model consumed by the
// serialization layer. Columns are dense, append-only value sequences;
// the Variant column composes several of them behind a discriminator
// sequence.
package column

// Column is the minimal surface the codecs need from any column.
type Column interface {
	// Len returns the number of values currently held.
	Len() int
	// ValueAt returns the value at index i boxed as any.
	ValueAt(i int) any
	// Truncate shortens the column to n values. Used to roll back
	// speculatively appended values.
	Truncate(n int)
	// Reset truncates the column to zero length, keeping capacity.
	Reset()
}
