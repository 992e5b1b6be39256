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

package catalog

// PathFingerprint is djb2 over the path's bytes, seeded at 5381. It is part
// of the external contract (index key) and must never change shape.
func PathFingerprint(path string) uint32 {
	var h uint32 = 5381

	for i := 0; i < len(path); i++ {
		h = h*33 + uint32(path[i])
	}

	return h
}

// ContentFingerprint is an additive byte-sum over the file's bytes, seeded
// at 5381. It is not cryptographic and collides readily on byte
// permutations; it is preserved bit-for-bit because it is the sole producer
// of the ETag validator handed to clients, and changing it would silently
// invalidate every cache already holding one of our ETags.
func ContentFingerprint(data []byte) uint32 {
	var h uint32 = 5381

	for _, c := range data {
		h += uint32(c)
	}

	return h
}
