package common

import "time"

// Version is injected at build time via -ldflags.
var Version = "v2.0.0"

// StartTime is the process start timestamp in seconds.
var StartTime = time.Now().Unix()
