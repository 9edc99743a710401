package util

import (
	"strconv"
	"strings"
	"time"
)

const unknown = "Unknown"

// Injected at build time with -ldflags.
var (
	VERSION           = unknown
	SOURCE_DATE_EPOCH = unknown
)

func VersionTemplate() string {
	return `{{.Version}}` + "\n"
}

func Version() string {
	displayTime := unknown
	epoch, err := strconv.ParseInt(strings.TrimSpace(SOURCE_DATE_EPOCH), 10, 64)
	if err == nil {
		displayTime = time.Unix(epoch, 0).
			In(time.FixedZone("UTC", 0)).
			Format(time.RFC1123Z)
	}
	return VERSION + " (Build Time: " + displayTime + ")"
}
