package main

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// sinceValue is a pflag.Value accepting either a duration ago ("90m") or
// an absolute RFC 3339 timestamp.
type sinceValue struct {
	raw string
	t   time.Time
	now func() time.Time
}

var _ pflag.Value = (*sinceValue)(nil)

func newSinceValue() *sinceValue { return &sinceValue{now: time.Now} }

func (v *sinceValue) String() string { return v.raw }

func (v *sinceValue) Type() string { return "since" }

func (v *sinceValue) Set(s string) error {
	if d, err := time.ParseDuration(s); err == nil {
		if d < 0 {
			return fmt.Errorf("negative duration %q", s)
		}
		v.raw, v.t = s, v.now().Add(-d)
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("want a duration like 30m or an RFC 3339 time, got %q", s)
	}
	v.raw, v.t = s, t
	return nil
}

// Time returns the cutoff, zero when the flag was not set.
func (v *sinceValue) Time() time.Time { return v.t }
