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

package cxxabi

import (
	"testing"

	"github.com/cloudwego/cxxabi/internal/layout"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestModuleEndToEnd(t *testing.T) {
	v := NewClass("V")
	v.AddMethod(&layout.Method{Name: "f", Virtual: true})
	c := NewClass("C", Base{Class: v, Virtual: true})
	c.AddMethod(&layout.Method{Name: "f", Virtual: true})
	c.AddMethod(&layout.Method{Name: "~", Virtual: true, Dtor: true})

	m := NewModule(WithLogger(zap.NewNop()), WithDebugChecks())

	for _, vf := range m.VTables.VFPtrOffsets(c) {
		m.AddrOfVFTable(c, vf.Offset)
	}
	m.EnumerateVBTables(c)
	m.EmitDeferred()

	for _, g := range m.Globals() {
		require.True(t, g.Init, "every referenced table must end up defined: %s", g.Name)
		require.NotEmpty(t, g.Dump())
	}
	require.Empty(t, m.Diagnostics())
}

func TestWithLoggerNil(t *testing.T) {
	require.Panics(t, func() { WithLogger(nil) })
}

func TestIsUnsupported(t *testing.T) {
	err := &UnsupportedError{What: "something"}
	require.True(t, IsUnsupported(err))
	require.Contains(t, err.Error(), "unsupported")
}
