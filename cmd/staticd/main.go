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

package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/sabouaram/staticd/banner"
	"github.com/sabouaram/staticd/logging"
	"github.com/sabouaram/staticd/server"
	"github.com/sabouaram/staticd/staticfg"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath  string
		webrootFlag string
		metricsAddr string
		refreshNow  bool
	)

	cmd := &cobra.Command{
		Use:   "staticd",
		Short: "Static-file HTTP/HTTPS origin server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := staticfg.Load(configPath)
			if err != nil {
				return err
			}
			if webrootFlag != "" {
				cfg.Webroot = webrootFlag
			}

			log := logging.New(os.Stdout, logging.InfoLevel)

			banner.Print(os.Stdout, banner.Info{
				Webroot:        cfg.Webroot,
				HTTPPort:       cfg.HTTPPort,
				HTTPSPort:      cfg.HTTPSPort,
				ThreadPoolSize: cfg.ThreadPoolSize,
				MaxQueueSize:   cfg.MaxQueueSize,
				TLSEnabled:     cfg.TLSCertFile != "" && cfg.TLSKeyFile != "",
			})

			srv := server.New(*cfg, log)
			if err := srv.Listen(); err != nil {
				return err
			}

			if refreshNow {
				srv.TriggerRefresh()
			}

			if metricsAddr != "" {
				go func() {
					mux := http.NewServeMux()
					mux.Handle("/metrics", promhttp.Handler())
					_ = http.ListenAndServe(metricsAddr, mux)
				}()
			}

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

			for {
				select {
				case s := <-sig:
					switch s {
					case syscall.SIGHUP:
						srv.TriggerRefresh()
					default:
						srv.Shutdown()
						<-srv.WaitNotify()
						return nil
					}
				case err := <-srv.WaitNotify():
					return err
				}
			}
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to the configuration file")
	cmd.Flags().StringVar(&webrootFlag, "webroot", "", "override the configured webroot")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (disabled if empty)")
	cmd.Flags().BoolVar(&refreshNow, "refresh-now", false, "rebuild the content catalog immediately after startup")

	return cmd
}
