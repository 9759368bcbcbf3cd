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

func vmethod(name string) *Method {
	return &Method{Name: name, Virtual: true}
}

func vdtor() *Method {
	return &Method{Name: "~", Virtual: true, Dtor: true}
}

func TestShape(t *testing.T) {
	a := NewClass("A")
	require.Equal(t, Single, a.Shape())

	b := NewClass("B")
	m := NewClass("M", Base{Class: a}, Base{Class: b})
	require.Equal(t, Multiple, m.Shape())

	v := NewClass("V", Base{Class: a, Virtual: true})
	require.Equal(t, Virtual, v.Shape())

	/* moral virtual bases propagate through non-virtual edges */
	d := NewClass("D", Base{Class: v})
	require.Equal(t, Virtual, d.Shape())

	u := NewClass("U")
	u.Incomplete = true
	require.Equal(t, Unspecified, u.Shape())
}

func TestShapeMemoized(t *testing.T) {
	a := NewClass("A")
	require.Equal(t, Single, a.Shape())

	/* completing the hierarchy later must not change the model */
	b := NewClass("B")
	a.Bases = append(a.Bases, Base{Class: b}, Base{Class: NewClass("C")})
	require.Equal(t, Single, a.Shape())
}

func TestLayoutPlain(t *testing.T) {
	c := NewClass("C")
	c.Fields = []Field{{Name: "x", Size: 4, Align: 4}, {Name: "y", Size: 8, Align: 8}}
	l := NewTable().Of(c)
	require.Equal(t, int64(16), l.Size)
	require.Equal(t, int64(8), l.Align)
	require.False(t, l.HasOwnVFPtr)
	require.Equal(t, NoVBPtr, l.VBPtrOffset)
}

func TestLayoutEmptyClass(t *testing.T) {
	l := NewTable().Of(NewClass("E"))
	require.Equal(t, int64(1), l.Size)
}

func TestLayoutVFPtr(t *testing.T) {
	c := NewClass("C")
	c.AddMethod(vmethod("f"))
	c.Fields = []Field{{Name: "x", Size: 4, Align: 4}}
	l := NewTable().Of(c)
	require.True(t, l.HasOwnVFPtr)
	require.Equal(t, int64(16), l.Size, "vfptr before the fields, padded to pointer alignment")
}

func TestLayoutPrimaryBase(t *testing.T) {
	a := NewClass("A")
	a.AddMethod(vmethod("f"))
	d := NewClass("D", Base{Class: a})
	d.AddMethod(vmethod("g"))

	tab := NewTable()
	l := tab.Of(d)
	require.False(t, l.HasOwnVFPtr, "the vfptr of A at offset 0 is reused")
	require.Equal(t, int64(0), l.BaseOffset(a))
}

func TestLayoutMultipleBases(t *testing.T) {
	a := NewClass("A")
	a.AddMethod(vmethod("f"))
	b := NewClass("B")
	b.AddMethod(vmethod("g"))
	d := NewClass("D", Base{Class: a}, Base{Class: b})

	tab := NewTable()
	l := tab.Of(d)
	require.Equal(t, int64(0), l.BaseOffset(a))
	require.Equal(t, int64(8), l.BaseOffset(b), "second polymorphic base carries its own vfptr")
}

func TestLayoutVBPtr(t *testing.T) {
	v := NewClass("V")
	v.Fields = []Field{{Name: "x", Size: 4, Align: 4}}
	c := NewClass("C", Base{Class: v, Virtual: true})

	tab := NewTable()
	l := tab.Of(c)
	require.Equal(t, int64(0), l.VBPtrOffset)
	require.Equal(t, int64(8), l.VBaseOffset(v), "virtual base after the non-virtual part")
	require.Equal(t, int64(8), l.NVSize)
}

func TestLayoutVBPtrDonor(t *testing.T) {
	v := NewClass("V")
	b := NewClass("B", Base{Class: v, Virtual: true})
	d := NewClass("D", Base{Class: b})

	require.Nil(t, VBPtrDonor(b))
	require.Same(t, b, VBPtrDonor(d))

	tab := NewTable()
	require.Equal(t, NoVBPtr, tab.Of(d).VBPtrOffset, "the vbptr of B is reused")
}

func TestLayoutVBaseShared(t *testing.T) {
	v := NewClass("V")
	v.Fields = []Field{{Name: "x", Size: 4, Align: 4}}
	b1 := NewClass("B1", Base{Class: v, Virtual: true})
	b2 := NewClass("B2", Base{Class: v, Virtual: true})
	d := NewClass("D", Base{Class: b1}, Base{Class: b2})

	require.Equal(t, 1, d.NumVBases(), "one V subobject however many paths reach it")
	l := NewTable().Of(d)
	require.Equal(t, 1, len(l.VBaseOffsets()))
}

func TestLayoutVtorDisp(t *testing.T) {
	v := NewClass("V")
	v.AddMethod(vmethod("f"))
	c := NewClass("C", Base{Class: v, Virtual: true})
	c.AddMethod(vmethod("f"))

	l := NewTable().Of(c)
	ents := l.VBaseOffsets()
	require.Equal(t, 1, len(ents))
	require.True(t, ents[0].VtorDisp, "overriding a vbase method forces a vtordisp")

	/* no override, no vtordisp */
	c2 := NewClass("C2", Base{Class: v, Virtual: true})
	ents2 := NewTable().Of(c2).VBaseOffsets()
	require.False(t, ents2[0].VtorDisp)
}

func TestOverrideLinking(t *testing.T) {
	a := NewClass("A")
	f := a.AddMethod(vmethod("f"))
	ad := a.AddMethod(vdtor())

	d := NewClass("D", Base{Class: a})
	df := d.AddMethod(vmethod("f"))
	dd := d.AddMethod(vdtor())

	require.Same(t, f, df.Overrides)
	require.Same(t, ad, dd.Overrides)
	require.Same(t, f, df.Root())
}
