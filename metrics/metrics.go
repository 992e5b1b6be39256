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

// Package metrics exposes the worker pool and request counters the
// operator scrapes; the core only ever increments/sets them, never reads
// them back.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "staticd_queue_depth",
		Help: "Current number of work items waiting in the worker pool queue.",
	})

	QueueRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "staticd_queue_rejected_total",
		Help: "Connections refused because the work queue was at capacity.",
	})

	WorkersBusy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "staticd_workers_busy",
		Help: "Number of workers currently executing a request.",
	})

	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "staticd_requests_total",
		Help: "Total requests served, labeled by response status.",
	}, []string{"status"})
)
