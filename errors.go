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
	"errors"

	"github.com/cloudwego/cxxabi/internal/msabi"
)

// UnsupportedError occurs when lowering a construct this ABI
// implementation declines to handle. Emission continues with a
// placeholder value, the diagnostics accumulate on the Module.
type UnsupportedError = msabi.UnsupportedError

// IsUnsupported reports whether err is an UnsupportedError.
func IsUnsupported(err error) bool {
	var ue *UnsupportedError
	return errors.As(err, &ue)
}
