package kfmt

import (
	"fmt"
	"strconv"
	"strings"
)

// Option describes one named, typed configuration knob a driver or file
// system exposes, grounded on rclone's backend.Option pattern
// (backend/local/local.go, backend/cache/cache.go declare []fs.Option
// tables consumed by a generic parser rather than hand-rolled flag
// parsing per backend).
type Option struct {
	Name    string
	Default string
	Help    string
}

// Options is an unordered set of key=value pairs (so FormatOptions emits
// them in no defined order), the configuration string
// format a device node or file system driver receives at mount/open time
// (the original's comma-separated driver config strings, e.g.
// "baudrate=115200,parity=none").
type Options map[string]string

// ParseOptions splits a "key=value,key=value" string into an Options map.
// A bare "key" with no "=" is recorded with an empty value, mirroring
// boolean-flag-style options.
func ParseOptions(s string) Options {
	out := Options{}
	if s == "" {
		return out
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if i := strings.IndexByte(part, '='); i >= 0 {
			out[part[:i]] = part[i+1:]
		} else {
			out[part] = ""
		}
	}
	return out
}

// FormatOptions is ParseOptions' inverse, used for logging/diagnostics.
func FormatOptions(o Options) string {
	var parts []string
	for k, v := range o {
		if v == "" {
			parts = append(parts, k)
		} else {
			parts = append(parts, k+"="+v)
		}
	}
	return strings.Join(parts, ",")
}

// WithDefaults applies decl's defaults for every option missing from o,
// returning a new Options value.
func WithDefaults(o Options, decl []Option) Options {
	out := Options{}
	for k, v := range o {
		out[k] = v
	}
	for _, d := range decl {
		if _, ok := out[d.Name]; !ok && d.Default != "" {
			out[d.Name] = d.Default
		}
	}
	return out
}

func (o Options) Int(key string, def int) int {
	v, ok := o[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func (o Options) Bool(key string, def bool) bool {
	v, ok := o[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		return v
	}
	return def
}

// Validate checks that o contains no keys outside decl, returning an error
// naming the first unrecognized key -- the hosted analogue of the
// original's strict driver-ioctl-config validation.
func Validate(o Options, decl []Option) error {
	known := map[string]bool{}
	for _, d := range decl {
		known[d.Name] = true
	}
	for k := range o {
		if !known[k] {
			return fmt.Errorf("kfmt: unrecognized option %q", k)
		}
	}
	return nil
}
