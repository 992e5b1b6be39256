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

// Package staticfg loads the frozen configuration record the core
// consumes. Loading and validation stay here; the serving packages only
// ever see the already-validated struct.
package staticfg

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/sabouaram/staticd/errcode"
)

// Config is the frozen record the core consumes for its whole lifetime;
// nothing in the core mutates it after Load returns.
type Config struct {
	Webroot        string `mapstructure:"webroot" validate:"required,dir"`
	HTTPPort       int    `mapstructure:"http_port" validate:"required,min=1,max=65535"`
	HTTPSPort      int    `mapstructure:"https_port" validate:"required,min=1,max=65535"`
	ThreadPoolSize int    `mapstructure:"thread_pool_size" validate:"required,min=1"`
	MaxQueueSize   int    `mapstructure:"max_queue_size" validate:"required,min=1"`

	TLSCertFile string `mapstructure:"tls_cert_file"`
	TLSKeyFile  string `mapstructure:"tls_key_file"`

	ExcludeGlobs []string `mapstructure:"exclude_globs"`

	ReadTimeoutSeconds int `mapstructure:"read_timeout_seconds" validate:"min=0"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"http_port":            80,
		"https_port":           443,
		"thread_pool_size":     20,
		"max_queue_size":       100,
		"read_timeout_seconds": 1,
	}
}

// Load reads the configuration from path (any format viper supports: yaml,
// json, toml, ...) merged over the documented defaults, then validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, val := range defaults() {
		v.SetDefault(key, val)
	}

	v.SetEnvPrefix("STATICD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errcode.New(errcode.ConfigInvalid, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errcode.New(errcode.ConfigInvalid, err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, errcode.New(errcode.ConfigInvalid, err)
	}

	return &cfg, nil
}
