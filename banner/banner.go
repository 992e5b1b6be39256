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

// Package banner prints a small startup summary to the console. It is
// purely cosmetic; nothing in the core depends on it running.
package banner

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Info is the set of values worth showing an operator at startup.
type Info struct {
	Webroot        string
	HTTPPort       int
	HTTPSPort      int
	ThreadPoolSize int
	MaxQueueSize   int
	TLSEnabled     bool
}

// Print writes the banner to w. Color is only used when w is a terminal.
func Print(w io.Writer, info Info) {
	bold := color.New(color.Bold)
	if f, ok := w.(*os.File); !ok || !isatty.IsTerminal(f.Fd()) {
		bold.DisableColor()
	}

	bold.Fprintln(w, "staticd")
	fmt.Fprintf(w, "  webroot            %s\n", info.Webroot)
	fmt.Fprintf(w, "  http               :%d\n", info.HTTPPort)
	if info.TLSEnabled {
		fmt.Fprintf(w, "  https              :%d\n", info.HTTPSPort)
	} else {
		fmt.Fprintln(w, "  https              disabled (no TLS material)")
	}
	fmt.Fprintf(w, "  worker pool        %d workers, queue depth %d\n", info.ThreadPoolSize, info.MaxQueueSize)
}
