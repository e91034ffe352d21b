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

import "sort"

// Text-grammar weights: the lower the weight, the narrower the grammar
// and the earlier the alternative is tried during ambiguous text
// resolution. A grammar that is a strict subset of another must weigh
// less than it, otherwise the permissive one swallows every token first.
const (
	textWeightBool    = 10
	textWeightUUID    = 20
	textWeightInteger = 30 // plus byte width, so narrower ints go first
	textWeightFloat   = 50 // plus byte width
	textWeightString  = 100
)

// TextWeigher is implemented by codecs that can rank the permissiveness
// of their text grammar. Codecs without a ranking are treated as maximally
// permissive.
type TextWeigher interface {
	TextWeight() int
}

// TextDeserializeOrder computes the order in which variant alternatives
// should be tried when resolving an untagged text token. The ranking is
// static: it depends only on the declared codec types, never on data, so
// the same alternative list always yields the same permutation. Ties keep
// declaration order.
func TextDeserializeOrder(alts []Serialization) []int {
	weights := make([]int, len(alts))
	for i, alt := range alts {
		weights[i] = textWeightString
		if tw, ok := alt.(TextWeigher); ok {
			weights[i] = tw.TextWeight()
		}
	}
	order := make([]int, len(alts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return weights[order[a]] < weights[order[b]]
	})
	return order
}
