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

// Shape is the inheritance model of a class. It selects the physical
// representation of member pointers into that class, and is fixed once
// the class is complete.
type Shape uint8

const (
	Single Shape = iota
	Multiple
	Virtual
	Unspecified
)

func (s Shape) String() string {
	switch s {
	case Single:
		return "single"
	case Multiple:
		return "multiple"
	case Virtual:
		return "virtual"
	default:
		return "unspecified"
	}
}

// Base is one direct base class edge.
type Base struct {
	Class   *Class
	Virtual bool
}

// Field is a non-static data member.
type Field struct {
	Name  string
	Size  int64
	Align int64
}

// Method is a member function. Overrides links an override to the
// method it overrides in some base; walking the chain reaches the
// first declaration.
type Method struct {
	Name      string
	Class     *Class
	Virtual   bool
	Dtor      bool
	Overrides *Method
}

// Root returns the first declaration of the method, following the
// override chain all the way up.
func (m *Method) Root() *Method {
	r := m
	for r.Overrides != nil {
		r = r.Overrides
	}
	return r
}

// Class is a C++ record. A class marked Incomplete (forward-declared
// when a member pointer to it was first formed) has the Unspecified
// inheritance shape.
type Class struct {
	Name       string
	Bases      []Base
	Fields     []Field
	Methods    []*Method
	Incomplete bool
	Internal   bool // internal linkage (anonymous namespace)

	shape  Shape
	shaped bool
}

func NewClass(name string, bases ...Base) *Class {
	return &Class{Name: name, Bases: bases}
}

// AddMethod declares a member function on c. If the method is virtual
// and some base declares a virtual method (or destructor) of the same
// name, the override link is established automatically.
func (c *Class) AddMethod(m *Method) *Method {
	m.Class = c
	if m.Virtual && m.Overrides == nil {
		m.Overrides = c.findOverridden(m)
	}
	c.Methods = append(c.Methods, m)
	return m
}

func (c *Class) findOverridden(m *Method) *Method {
	for _, b := range c.Bases {
		for _, bm := range b.Class.Methods {
			if bm.Virtual && bm.Dtor == m.Dtor && (m.Dtor || bm.Name == m.Name) {
				return bm
			}
		}
		if o := b.Class.findOverridden(m); o != nil {
			return o
		}
	}
	return nil
}

// Dtor returns the destructor of c, if declared.
func (c *Class) Dtor() *Method {
	for _, m := range c.Methods {
		if m.Dtor {
			return m
		}
	}
	return nil
}

// Polymorphic reports whether c has a vfptr anywhere in its layout.
func (c *Class) Polymorphic() bool {
	for _, m := range c.Methods {
		if m.Virtual {
			return true
		}
	}
	for _, b := range c.Bases {
		if b.Class.Polymorphic() {
			return true
		}
	}
	return false
}

// VBases returns every morally virtual base of c, in discovery order,
// without duplicates.
func (c *Class) VBases() []*Class {
	var r []*Class
	seen := make(map[*Class]bool)
	c.collectVBases(&r, seen)
	return r
}

func (c *Class) collectVBases(r *[]*Class, seen map[*Class]bool) {
	for _, b := range c.Bases {
		b.Class.collectVBases(r, seen)
		if b.Virtual && !seen[b.Class] {
			seen[b.Class] = true
			*r = append(*r, b.Class)
		}
	}
}

// NumVBases counts the morally virtual bases of c.
func (c *Class) NumVBases() int {
	return len(c.VBases())
}

// DerivesFrom reports whether c is t or derives from t through any
// chain of bases.
func (c *Class) DerivesFrom(t *Class) bool {
	if c == t {
		return true
	}
	for _, b := range c.Bases {
		if b.Class.DerivesFrom(t) {
			return true
		}
	}
	return false
}

// OverridesMethodOf reports whether c declares an override of any
// virtual method that is a member of the v subobject.
func (c *Class) OverridesMethodOf(v *Class) bool {
	for _, m := range c.Methods {
		for o := m.Overrides; o != nil; o = o.Overrides {
			if v.DerivesFrom(o.Class) || o.Class == v {
				return true
			}
		}
	}
	return false
}

// Shape derives the inheritance model from the base graph. The result
// is computed once and memoized: the model is part of the ABI and must
// never change after the class is complete.
func (c *Class) Shape() Shape {
	if c.shaped {
		return c.shape
	}
	c.shape = c.deriveShape()
	c.shaped = true
	return c.shape
}

func (c *Class) deriveShape() Shape {
	switch {
	case c.Incomplete:
		return Unspecified
	case c.NumVBases() > 0:
		return Virtual
	case len(c.Bases) > 1:
		return Multiple
	default:
		return Single
	}
}
