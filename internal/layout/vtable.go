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
	"fmt"
)

// MethodLocation is the declared vftable slot of a virtual method: the
// subobject expected as "this", expressed as an optional virtual base
// plus a static offset, and the slot index within that subobject's
// vftable.
type MethodLocation struct {
	VBase       *Class
	VFPtrOffset int64
	Index       int
}

// VFPtr is one vfptr injection point of a class: a distinct virtual
// function table pointer carried by instances of that class.
type VFPtr struct {
	Offset int64
	Base   *Class   // subobject whose vfptr this is
	Path   []string // mangling path for secondary tables
}

// Slot is one vftable entry after final-overrider resolution. A
// nonzero Adjustment means the entry must be an adjustor thunk that
// displaces "this" by that many bytes before entering the overrider.
type Slot struct {
	Method     *Method
	Adjustment int32
}

// Context assigns vftable slot indices and vbtable row indices. It is
// the slot-assignment collaborator: this package computes the
// assignment, the code-generation layer only consumes it.
type Context struct {
	types     *Table
	locations map[*Method]MethodLocation
	vfptrs    map[*Class][]VFPtr
}

func NewContext(types *Table) *Context {
	return &Context{
		types:     types,
		locations: make(map[*Method]MethodLocation),
		vfptrs:    make(map[*Class][]VFPtr),
	}
}

func (x *Context) Types() *Table {
	return x.types
}

// introduced returns the virtual methods first declared by c, in
// declaration order. They occupy the slots appended to c's primary
// vftable after the inherited ones.
func introduced(c *Class) []*Method {
	var r []*Method
	for _, m := range c.Methods {
		if m.Virtual && m.Overrides == nil {
			r = append(r, m)
		}
	}
	return r
}

// tableLen is the number of slots in c's own primary vftable.
func tableLen(c *Class) int {
	n := len(introduced(c))
	if p := primaryBase(c); p != nil {
		n += tableLen(p)
	}
	return n
}

// MethodLocation resolves the declared slot of a virtual method. The
// slot index is shared with every override of the same root
// declaration, the subobject part depends on where the method is
// declared: an override in a virtually derived class expects its
// receiver inside the virtual base subobject.
func (x *Context) MethodLocation(m *Method) MethodLocation {
	if ml, ok := x.locations[m]; ok {
		return ml
	}
	ml := x.computeLocation(m.Class, m.Root())
	x.locations[m] = ml
	return ml
}

func (x *Context) computeLocation(parent *Class, root *Method) MethodLocation {
	ml := MethodLocation{Index: x.slotIndex(root)}

	/* declared right here, or inherited through the primary chain */
	if off, ok := nvSubobjectOffset(x.types, parent, root.Class); ok {
		ml.VFPtrOffset = off
		return ml
	}

	/* the slot lives in a virtual base subobject */
	for _, v := range parent.VBases() {
		if off, ok := nvSubobjectOffset(x.types, v, root.Class); ok {
			ml.VBase = v
			ml.VFPtrOffset = off
			return ml
		}
	}
	panic(fmt.Sprintf("vtable: no subobject of %s declares %s::%s", parent.Name, root.Class.Name, root.Name))
}

// slotIndex is the index of a first-declared method within the
// vftable of its declaring class: inherited primary slots first, then
// the introduced ones in declaration order.
func (x *Context) slotIndex(root *Method) int {
	base := 0
	if p := primaryBase(root.Class); p != nil {
		base = tableLen(p)
	}
	for i, m := range introduced(root.Class) {
		if m == root {
			return base + i
		}
	}
	panic(fmt.Sprintf("vtable: %s::%s is not a first declaration", root.Class.Name, root.Name))
}

// NVBaseOffset finds the static offset of the t subobject within the
// non-virtual part of c. The second result is false when every path
// from c to t crosses a virtual inheritance edge.
func (x *Table) NVBaseOffset(c *Class, t *Class) (int64, bool) {
	return nvSubobjectOffset(x, c, t)
}

// nvSubobjectOffset finds the static offset of the t subobject within
// the non-virtual part of c, walking non-virtual bases depth first.
func nvSubobjectOffset(types *Table, c *Class, t *Class) (int64, bool) {
	if c == t {
		return 0, true
	}
	l := types.Of(c)
	for _, b := range c.Bases {
		if b.Virtual {
			continue
		}
		if off, ok := nvSubobjectOffset(types, b.Class, t); ok {
			return l.BaseOffset(b.Class) + off, true
		}
	}
	return 0, false
}

// VFPtrOffsets enumerates the distinct vfptr injection points of c:
// the primary vfptr at offset 0, one per additional already-polymorphic
// non-virtual base, and one per polymorphic virtual base.
func (x *Context) VFPtrOffsets(c *Class) []VFPtr {
	if v, ok := x.vfptrs[c]; ok {
		return v
	}

	var r []VFPtr
	seen := make(map[int64]bool)
	l := x.types.Of(c)

	add := func(off int64, base *Class, path []string) {
		if !seen[off] {
			seen[off] = true
			r = append(r, VFPtr{Offset: off, Base: base, Path: path})
		}
	}

	if c.Polymorphic() {
		add(0, c, nil)
	}
	for _, b := range c.Bases {
		if !b.Virtual && b.Class.Polymorphic() {
			add(l.BaseOffset(b.Class), b.Class, []string{b.Class.Name})
		}
	}
	for _, e := range l.VBaseOffsets() {
		if e.Class.Polymorphic() {
			add(e.Offset, e.Class, []string{e.Class.Name})
		}
	}

	x.vfptrs[c] = r
	return r
}

// VFTableLayout computes the slot roster of the vftable injected at
// the given offset of c, with every slot resolved to its final
// overrider in c. The roster order follows the slot indices assigned
// by slotIndex.
func (x *Context) VFTableLayout(c *Class, offset int64) []Slot {
	var base *Class
	for _, vf := range x.VFPtrOffsets(c) {
		if vf.Offset == offset {
			base = vf.Base
		}
	}
	if base == nil {
		panic(fmt.Sprintf("vtable: class %s has no vfptr at offset %d", c.Name, offset))
	}

	/* the primary table also carries the slots introduced anywhere on
	 * the path from the subobject down to the complete class */
	roster := rosterOf(base)
	if offset == 0 && base != c {
		roster = rosterOf(c)
	}

	slots := make([]Slot, 0, len(roster))
	for _, root := range roster {
		ov := resolveOverrider(c, root)
		adj := int32(0)
		if offset != 0 && ov.Class != base {
			if od, ok := nvSubobjectOffset(x.types, c, ov.Class); ok {
				adj = int32(od - offset)
			} else {
				adj = int32(-offset)
			}
		}
		slots = append(slots, Slot{Method: ov, Adjustment: adj})
	}
	return slots
}

// rosterOf lists the first declarations occupying c's primary table,
// in slot order.
func rosterOf(c *Class) []*Method {
	var r []*Method
	if p := primaryBase(c); p != nil {
		r = rosterOf(p)
	}
	r = append(r, introduced(c)...)
	return r
}

// resolveOverrider finds the final overrider of a root declaration
// within c, preferring the most derived declaration.
func resolveOverrider(c *Class, root *Method) *Method {
	for _, m := range c.Methods {
		if m.Root() == root {
			return m
		}
	}
	for _, b := range c.Bases {
		if ov := resolveOverrider(b.Class, root); ov != root {
			return ov
		}
	}
	return root
}

// VBTableIndex returns the vbtable row of a virtual base. Row 0 is
// reserved for the self-offset sentinel, so assignment starts at 1.
func (x *Context) VBTableIndex(c *Class, v *Class) int {
	for i, vb := range c.VBases() {
		if vb == v {
			return i + 1
		}
	}
	panic(fmt.Sprintf("vtable: %s is not a virtual base of %s", v.Name, c.Name))
}
