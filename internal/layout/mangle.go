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

package layout

import (
	"strconv"
	"strings"
)

// Mangler produces the Microsoft-style decorated names this code
// generator needs: vftable and vbtable symbols, static-initialization
// guard variables, and structor variants. It also hands out the
// pre-assigned bit indices that externally visible static locals carry
// in their decorated names.
type Mangler struct {
	statics map[string]int
}

func NewMangler() *Mangler {
	return &Mangler{
		statics: make(map[string]int),
	}
}

// VFTable mangles the vftable symbol of c injected along the given
// base path. The path is empty for the primary table.
func (x *Mangler) VFTable(c *Class, path []string) string {
	var b strings.Builder
	b.WriteString("??_7")
	b.WriteString(c.Name)
	b.WriteString("@@6B")
	for _, p := range path {
		b.WriteString(p)
		b.WriteString("@@")
	}
	b.WriteString("@")
	return b.String()
}

// VBTable mangles the vbtable symbol of c for the given vbptr path.
func (x *Mangler) VBTable(c *Class, path []string) string {
	var b strings.Builder
	b.WriteString("??_8")
	b.WriteString(c.Name)
	b.WriteString("@@7B")
	for _, p := range path {
		b.WriteString(p)
		b.WriteString("@@")
	}
	b.WriteString("@")
	return b.String()
}

// Guard mangles the guard variable covering the static locals of a
// function scope.
func (x *Mangler) Guard(scope string) string {
	return "?$S1@?1??" + scope + "@@2IA"
}

// Ctor mangles a constructor symbol. Every constructor is emitted as
// the single complete-object variant.
func (x *Mangler) Ctor(c *Class) string {
	return "??0" + c.Name + "@@QAE@XZ"
}

// Dtor mangles a destructor variant: base, complete, or deleting.
func (x *Mangler) Dtor(c *Class, v StructorVariant) string {
	switch v {
	case StructorBase:
		return "??1" + c.Name + "@@UAE@XZ"
	case StructorComplete:
		return "??_D" + c.Name + "@@QAEXXZ"
	case StructorDeleting:
		return "??_G" + c.Name + "@@UAEPAXI@Z"
	default:
		panic("mangle: invalid destructor variant")
	}
}

// Method mangles a plain virtual method symbol.
func (x *Mangler) Method(m *Method) string {
	return "?" + m.Name + "@" + m.Class.Name + "@@UAEXXZ"
}

// Thunk mangles an adjustor thunk for a method, keyed by the this
// displacement it applies.
func (x *Mangler) Thunk(m *Method, adjustment int32) string {
	return "?" + m.Name + "@" + m.Class.Name + "@@W" + strconv.Itoa(int(-adjustment)) + "AEXXZ"
}

// AssignStaticIndex records the guard bit of an externally visible
// static local, so that every translation unit tests the same bit. It
// returns the index previously assigned to the same variable if any.
func (x *Mangler) AssignStaticIndex(name string, index int) int {
	if i, ok := x.statics[name]; ok {
		return i
	}
	x.statics[name] = index
	return index
}

// StaticIndex looks up a pre-assigned guard bit.
func (x *Mangler) StaticIndex(name string) (int, bool) {
	i, ok := x.statics[name]
	return i, ok
}

// StructorVariant identifies which destructor body a symbol refers
// to. Constructors only ever have the complete variant.
type StructorVariant uint8

const (
	StructorBase StructorVariant = iota
	StructorComplete
	StructorDeleting
)

func (v StructorVariant) String() string {
	switch v {
	case StructorBase:
		return "base"
	case StructorComplete:
		return "complete"
	case StructorDeleting:
		return "deleting"
	default:
		return "invalid"
	}
}
