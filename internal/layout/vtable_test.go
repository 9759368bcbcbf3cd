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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMethodLocation(t *testing.T) {
	a := NewClass("A")
	f := a.AddMethod(vmethod("f"))
	g := a.AddMethod(vmethod("g"))

	ctx := NewContext(NewTable())
	require.Equal(t, 0, ctx.MethodLocation(f).Index)
	require.Equal(t, 1, ctx.MethodLocation(g).Index)

	/* overrides land in the slot of the first declaration */
	d := NewClass("D", Base{Class: a})
	dg := d.AddMethod(vmethod("g"))
	h := d.AddMethod(vmethod("h"))
	require.Equal(t, 1, ctx.MethodLocation(dg).Index)
	require.Equal(t, 2, ctx.MethodLocation(h).Index)
	require.Equal(t, int64(0), ctx.MethodLocation(h).VFPtrOffset)
	require.Nil(t, ctx.MethodLocation(h).VBase)
}

func TestMethodLocationSecondBase(t *testing.T) {
	a := NewClass("A")
	a.AddMethod(vmethod("f"))
	b := NewClass("B")
	g := b.AddMethod(vmethod("g"))
	d := NewClass("D", Base{Class: a}, Base{Class: b})

	ctx := NewContext(NewTable())
	ml := ctx.MethodLocation(g)
	require.Equal(t, int64(0), ml.VFPtrOffset, "the location is relative to B, which holds its own vfptr at 0")
	require.Equal(t, 0, ml.Index)

	/* seen from D the slot sits behind the second vfptr */
	off, ok := ctx.Types().NVBaseOffset(d, b)
	require.True(t, ok)
	require.Equal(t, int64(8), off+ml.VFPtrOffset)
}

func TestMethodLocationVBase(t *testing.T) {
	v := NewClass("V")
	f := v.AddMethod(vmethod("f"))
	c := NewClass("C", Base{Class: v, Virtual: true})

	ctx := NewContext(NewTable())
	_ = ctx.Types().Of(c)
	ml := ctx.MethodLocation(f)
	require.Nil(t, ml.VBase, "location is declared relative to V itself")

	cf := c.AddMethod(vmethod("f"))
	ml2 := ctx.MethodLocation(cf)
	require.Same(t, v, ml2.VBase, "the override expects this inside the V subobject")
	require.Equal(t, ml.Index, ml2.Index, "an override shares the root slot")
}

func TestVFPtrOffsets(t *testing.T) {
	a := NewClass("A")
	a.AddMethod(vmethod("f"))
	b := NewClass("B")
	b.AddMethod(vmethod("g"))
	v := NewClass("V")
	v.AddMethod(vmethod("h"))
	d := NewClass("D", Base{Class: a}, Base{Class: b}, Base{Class: v, Virtual: true})

	ctx := NewContext(NewTable())
	pts := ctx.VFPtrOffsets(d)
	require.Equal(t, 3, len(pts))
	require.Equal(t, int64(0), pts[0].Offset)
	require.Same(t, d, pts[0].Base, "the table at offset 0 is shared with the primary base")
	require.Equal(t, int64(8), pts[1].Offset)
	require.Same(t, b, pts[1].Base)
	require.Same(t, v, pts[2].Base)

	/* enumeration is cached and stable */
	require.Equal(t, pts, ctx.VFPtrOffsets(d))
}

func TestVFTableLayoutPrimary(t *testing.T) {
	a := NewClass("A")
	a.AddMethod(vmethod("f"))
	a.AddMethod(vmethod("g"))
	d := NewClass("D", Base{Class: a})
	dg := d.AddMethod(vmethod("g"))
	dh := d.AddMethod(vmethod("h"))

	ctx := NewContext(NewTable())
	slots := ctx.VFTableLayout(d, 0)
	require.Equal(t, 3, len(slots))
	require.Equal(t, "f", slots[0].Method.Name)
	require.Same(t, a, slots[0].Method.Class)
	require.Same(t, dg, slots[1].Method, "final overrider replaces the base entry")
	require.Same(t, dh, slots[2].Method)
	for _, s := range slots {
		require.Equal(t, int32(0), s.Adjustment, "primary table entries need no thunk")
	}
}

func TestVFTableLayoutSecondary(t *testing.T) {
	a := NewClass("A")
	a.AddMethod(vmethod("f"))
	b := NewClass("B")
	b.AddMethod(vmethod("g"))
	d := NewClass("D", Base{Class: a}, Base{Class: b})
	dg := d.AddMethod(vmethod("g"))

	ctx := NewContext(NewTable())
	slots := ctx.VFTableLayout(d, 8)
	require.Equal(t, 1, len(slots))
	require.Same(t, dg, slots[0].Method)
	require.Equal(t, int32(-8), slots[0].Adjustment, "the thunk hops from the B subobject back to D")
}

func TestVBTableIndex(t *testing.T) {
	v1 := NewClass("V1")
	v2 := NewClass("V2")
	c := NewClass("C", Base{Class: v1, Virtual: true}, Base{Class: v2, Virtual: true})

	ctx := NewContext(NewTable())
	require.Equal(t, 1, ctx.VBTableIndex(c, v1), "row 0 is the reserved self entry")
	require.Equal(t, 2, ctx.VBTableIndex(c, v2))
	require.Panics(t, func() { ctx.VBTableIndex(c, NewClass("X")) })
}
