package module

import (
	"time"

	"narrative/internal/platform/config"
)

// Options holds configuration settings for the transform module
type Options struct {
	RulesPath       string
	Watch           bool
	Workers         int
	Timeout         time.Duration
	SharedSubject   string
	MaxSegmentBytes int
}

// FromConfig extracts Options from the given config.Conf
func FromConfig(cfg config.Conf) Options {
	tc := cfg.Prefix("CORE_TRANSFORM_")
	return Options{
		RulesPath:       tc.MayString("RULES_PATH", ""),
		Watch:           tc.MayBool("WATCH", false),
		Workers:         tc.MayInt("WORKERS", 4),
		Timeout:         tc.MayDuration("TIMEOUT", 2*time.Second),
		SharedSubject:   tc.MayEnum("SHARED_SUBJECT", "split", "split", "keep"),
		MaxSegmentBytes: tc.MayInt("MAX_SEGMENT_BYTES", 64<<10),
	}
}

// merge lays non-zero overrides over o
func (o Options) merge(ov Options) Options {
	if ov.RulesPath != "" {
		o.RulesPath = ov.RulesPath
	}
	if ov.Workers != 0 {
		o.Workers = ov.Workers
	}
	if ov.Timeout != 0 {
		o.Timeout = ov.Timeout
	}
	if ov.SharedSubject != "" {
		o.SharedSubject = ov.SharedSubject
	}
	if ov.MaxSegmentBytes != 0 {
		o.MaxSegmentBytes = ov.MaxSegmentBytes
	}
	// bool override wins only when set
	if ov.Watch {
		o.Watch = true
	}
	return o
}
