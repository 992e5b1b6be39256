/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package response

import "github.com/sabouaram/staticd/request"

// ResolvedRange is the effective, clamped byte range to stream, widened to
// unsigned 64-bit arithmetic throughout to avoid the sign-extension bugs
// the byte-range grammar is prone to when mixed signed/unsigned math is used.
type ResolvedRange struct {
	Start       uint64
	End         uint64 // inclusive
	Satisfiable bool
}

// ResolveRange computes the effective [start,end] inclusive range for a
// file of size n, given the parsed RangeSpec. Unsatisfiable is reported
// rather than clamped silently, so the caller can answer 416.
func ResolveRange(spec request.RangeSpec, n uint64) ResolvedRange {
	if !spec.Present {
		return ResolvedRange{}
	}

	if spec.Suffix {
		k := spec.SuffixLen
		if k == 0 || n == 0 {
			return ResolvedRange{Satisfiable: false}
		}
		var start uint64
		if k < n {
			start = n - k
		}
		return ResolvedRange{Start: start, End: n - 1, Satisfiable: true}
	}

	s := spec.Start
	if s >= n {
		return ResolvedRange{Satisfiable: false}
	}

	end := n - 1
	if spec.HasEnd && spec.End < end {
		end = spec.End
	}

	if end < s {
		return ResolvedRange{Satisfiable: false}
	}

	return ResolvedRange{Start: s, End: end, Satisfiable: true}
}

// Length returns the inclusive byte count of the range.
func (r ResolvedRange) Length() uint64 {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}
