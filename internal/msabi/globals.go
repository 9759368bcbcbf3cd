/*
 * Copyright 2025 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package msabi

import (
	"github.com/davecgh/go-spew/spew"
)

// GlobalKind discriminates the globals this layer emits.
type GlobalKind uint8

const (
	GlobalVFTable GlobalKind = iota
	GlobalVBTable
	GlobalGuard
	GlobalThunk
)

func (k GlobalKind) String() string {
	switch k {
	case GlobalVFTable:
		return "vftable"
	case GlobalVBTable:
		return "vbtable"
	case GlobalGuard:
		return "guard"
	case GlobalThunk:
		return "thunk"
	default:
		return "invalid"
	}
}

// Linkage is the subset of object-file linkage the emitted globals
// use.
type Linkage uint8

const (
	LinkExternal Linkage = iota
	LinkInternal
	LinkOnce
)

// TableSlot is one resolved vftable entry: the symbol it points at
// and the this displacement of the adjustor thunk, zero when the
// entry points at the overrider directly.
type TableSlot struct {
	Fn         string
	Adjustment int32
}

// Global is one emitted module-level object. A vftable global carries
// Slots, a vbtable carries Offsets, a guard carries neither. Init
// flips when the definition has been written, address-of before then
// yields a declaration only.
type Global struct {
	Name    string
	Kind    GlobalKind
	Linkage Linkage
	Init    bool

	Slots   []TableSlot
	Offsets []int32
}

// Dump renders the global for debug traces.
func (g *Global) Dump() string {
	return spew.Sdump(g)
}
