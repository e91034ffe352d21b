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
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/tessera-db/tessera/column"
)

// SubstreamKind tags one element of a substream path.
type SubstreamKind int

const (
	// SubstreamVariantDiscriminators addresses the flat stream of
	// per-row discriminator values of a Variant column.
	SubstreamVariantDiscriminators SubstreamKind = iota
	// SubstreamVariantElement addresses the nested streams of one
	// alternative of a Variant column.
	SubstreamVariantElement
)

// PathElement is one step of a substream path.
type PathElement struct {
	Kind SubstreamKind
	// Alt is the alternative index for SubstreamVariantElement.
	Alt int
	// Name is the alternative's display name, carried for diagnostics.
	Name string
}

// SubstreamPath is the structural address of one physical stream inside a
// composite serialized representation. The empty path addresses the
// column's own (root) stream.
type SubstreamPath []PathElement

// child returns path extended by elem. The result never aliases the
// receiver's backing array, so held paths stay stable while a traversal
// keeps extending its own.
func (p SubstreamPath) child(elem PathElement) SubstreamPath {
	out := make(SubstreamPath, len(p), len(p)+1)
	copy(out, p)
	return append(out, elem)
}

// String renders the path for diagnostics and cache keys.
func (p SubstreamPath) String() string {
	if len(p) == 0 {
		return "."
	}
	var sb strings.Builder
	for i, e := range p {
		if i > 0 {
			sb.WriteByte('/')
		}
		switch e.Kind {
		case SubstreamVariantDiscriminators:
			sb.WriteString("discr")
		case SubstreamVariantElement:
			sb.WriteString("alt(")
			sb.WriteString(strconv.Itoa(e.Alt))
			if e.Name != "" {
				sb.WriteByte(',')
				sb.WriteString(e.Name)
			}
			sb.WriteByte(')')
		}
	}
	return sb.String()
}

// Key returns the 64-bit hash under which the path is cached.
func (p SubstreamPath) Key() uint64 {
	return xxh3.HashString(p.String())
}

// discriminatorsPath extends path with the discriminator stream location.
func discriminatorsPath(p SubstreamPath) SubstreamPath {
	return p.child(PathElement{Kind: SubstreamVariantDiscriminators})
}

// variantElementPath extends path with alternative i's nested location.
func variantElementPath(p SubstreamPath, i int, name string) SubstreamPath {
	return p.child(PathElement{Kind: SubstreamVariantElement, Alt: i, Name: name})
}

// SubstreamCache maps substream paths to column data already materialized
// within one deserialization call tree. A read that finds its path cached
// reuses the cached values instead of touching the physical stream again.
// A nil cache disables caching. Not safe for concurrent use; scope one
// cache to one call tree.
type SubstreamCache struct {
	cols map[uint64]column.Column
}

func NewSubstreamCache() *SubstreamCache {
	return &SubstreamCache{cols: make(map[uint64]column.Column)}
}

// Get returns the column cached under path, if any.
func (c *SubstreamCache) Get(path SubstreamPath) (column.Column, bool) {
	if c == nil {
		return nil, false
	}
	col, ok := c.cols[path.Key()]
	return col, ok
}

// Put records col as the materialized data of path's current chunk,
// replacing any previous entry.
func (c *SubstreamCache) Put(path SubstreamPath, col column.Column) {
	if c == nil {
		return
	}
	c.cols[path.Key()] = col
}
