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

const (
	PtrSize = 8
	IntSize = 4
)

// NoVBPtr is the sentinel VBPtrOffset of a class that does not embed
// its own vbptr (it reuses one donated by a non-virtual base).
const NoVBPtr = int64(-1)

// VBaseInfo describes one virtual base subobject in a complete layout.
type VBaseInfo struct {
	Offset   int64
	VtorDisp bool // a hidden i32 sits at Offset-4, live during ctors/dtors
}

// Layout is the computed record layout of one class: sizes, the vfptr
// and vbptr positions, and the subobject offsets of every base. All
// offsets are from the start of the class itself.
type Layout struct {
	Class       *Class
	Size        int64
	NVSize      int64 // size without virtual base subobjects
	Align       int64
	HasOwnVFPtr bool
	VBPtrOffset int64 // NoVBPtr if the vbptr is reused from a base

	nvBases    map[*Class]int64
	vbases     map[*Class]VBaseInfo
	vbaseOrder []*Class
}

// BaseOffset returns the offset of a direct non-virtual base.
func (l *Layout) BaseOffset(b *Class) int64 {
	off, ok := l.nvBases[b]
	if !ok {
		panic(fmt.Sprintf("layout: %s is not a non-virtual base of %s", b.Name, l.Class.Name))
	}
	return off
}

// VBaseOffset returns the static offset of a virtual base in the
// complete layout of l.Class.
func (l *Layout) VBaseOffset(v *Class) int64 {
	info, ok := l.vbases[v]
	if !ok {
		panic(fmt.Sprintf("layout: %s is not a virtual base of %s", v.Name, l.Class.Name))
	}
	return info.Offset
}

// VBaseOffsets returns every virtual base with its offset and vtordisp
// flag, in vbtable order.
func (l *Layout) VBaseOffsets() []VBaseEntry {
	r := make([]VBaseEntry, 0, len(l.vbaseOrder))
	for _, v := range l.vbaseOrder {
		r = append(r, VBaseEntry{Class: v, VBaseInfo: l.vbases[v]})
	}
	return r
}

type VBaseEntry struct {
	Class *Class
	VBaseInfo
}

// Table computes and caches record layouts per class. It is the
// layout-query collaborator: pure queries, no mutation of classes.
type Table struct {
	layouts map[*Class]*Layout
}

func NewTable() *Table {
	return &Table{layouts: make(map[*Class]*Layout)}
}

// Of returns the layout of c, computing it on first use.
func (t *Table) Of(c *Class) *Layout {
	if l, ok := t.layouts[c]; ok {
		return l
	}
	l := t.compute(c)
	t.layouts[c] = l
	return l
}

// HasOwnVFPtr reports whether c introduces a vfptr at offset 0 of its
// own layout, instead of reusing the vfptr of a primary base.
func (t *Table) HasOwnVFPtr(c *Class) bool {
	return t.Of(c).HasOwnVFPtr
}

// VBPtrOffset returns the offset of c's own vbptr, or NoVBPtr.
func (t *Table) VBPtrOffset(c *Class) int64 {
	return t.Of(c).VBPtrOffset
}

func alignTo(off, align int64) int64 {
	return (off + align - 1) &^ (align - 1)
}

// primaryBase returns the first direct non-virtual polymorphic base,
// whose vfptr at offset 0 the class reuses.
func primaryBase(c *Class) *Class {
	for _, b := range c.Bases {
		if !b.Virtual && b.Class.Polymorphic() {
			return b.Class
		}
	}
	return nil
}

func (t *Table) compute(c *Class) *Layout {
	l := &Layout{
		Class:       c,
		Align:       1,
		VBPtrOffset: NoVBPtr,
		nvBases:     make(map[*Class]int64),
		vbases:      make(map[*Class]VBaseInfo),
	}

	var off int64

	/* vfptr goes first, unless a primary base brings one at offset 0 */
	if c.Polymorphic() && primaryBase(c) == nil {
		l.HasOwnVFPtr = true
		off = PtrSize
		l.Align = PtrSize
	}

	/* non-virtual base subobjects, in declaration order; the primary
	 * base is laid out first so its vfptr lands at offset 0 */
	prim := primaryBase(c)
	if prim != nil {
		pl := t.Of(prim)
		l.nvBases[prim] = 0
		off = pl.NVSize
		if pl.Align > l.Align {
			l.Align = pl.Align
		}
	}
	for _, b := range c.Bases {
		if b.Virtual || b.Class == prim {
			continue
		}
		bl := t.Of(b.Class)
		off = alignTo(off, bl.Align)
		l.nvBases[b.Class] = off
		off += bl.NVSize
		if bl.Align > l.Align {
			l.Align = bl.Align
		}
	}

	/* the class's own vbptr, if no non-virtual base donates one */
	if c.NumVBases() > 0 && findVBPtrDonor(c) == nil {
		off = alignTo(off, PtrSize)
		l.VBPtrOffset = off
		off += PtrSize
		if PtrSize > l.Align {
			l.Align = PtrSize
		}
	}

	/* data members */
	for _, f := range c.Fields {
		off = alignTo(off, f.Align)
		off += f.Size
		if f.Align > l.Align {
			l.Align = f.Align
		}
	}

	/* empty classes still occupy one byte */
	if off == 0 {
		off = 1
	}
	l.NVSize = alignTo(off, l.Align)
	off = l.NVSize

	/* virtual base subobjects at the end, each preceded by a hidden
	 * 32-bit vtordisp when the class overrides one of its methods */
	for _, v := range c.VBases() {
		vl := t.Of(v)
		disp := c.OverridesMethodOf(v)
		if disp {
			off = alignTo(off+IntSize, vl.Align)
		} else {
			off = alignTo(off, vl.Align)
		}
		l.vbases[v] = VBaseInfo{Offset: off, VtorDisp: disp}
		l.vbaseOrder = append(l.vbaseOrder, v)
		off += vl.NVSize
		if vl.Align > l.Align {
			l.Align = vl.Align
		}
	}
	l.Size = alignTo(off, l.Align)
	return l
}

// findVBPtrDonor returns the first non-virtual base of c that has
// virtual bases of its own; c reuses that base's vbptr. Returns nil
// when c must embed its own vbptr.
func findVBPtrDonor(c *Class) *Class {
	for _, b := range c.Bases {
		if !b.Virtual && b.Class.NumVBases() > 0 {
			return b.Class
		}
	}
	return nil
}

// VBPtrDonor exposes the donor lookup for the adjustment layer.
func VBPtrDonor(c *Class) *Class {
	return findVBPtrDonor(c)
}
