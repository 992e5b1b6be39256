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

import (
	"bytes"
	"html/template"
)

// errorTemplate renders only the numeric code and reason phrase: an error
// body must never be able to leak anything else about the request.
var errorTemplate = template.Must(template.New("error").Parse(
	`<html><head><title>{{.Code}} {{.Reason}}</title></head>` +
		`<body><h1>{{.Code}} {{.Reason}}</h1></body></html>`))

type errorBodyData struct {
	Code   int
	Reason string
}

// renderErrorBody returns the HTML body for an error status.
func renderErrorBody(status int) []byte {
	var buf bytes.Buffer
	_ = errorTemplate.Execute(&buf, errorBodyData{Code: status, Reason: Reason(status)})
	return buf.Bytes()
}
