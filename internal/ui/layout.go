package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which compact mode is used.
	LayoutCompactWidth = 100

	// LayoutExtraWideWidth is the threshold for extra-wide layouts.
	LayoutExtraWideWidth = 160
)

// Chrome rows: header, command bar and notification line.
const chromeHeight = 3

// Activity view limits.
const (
	// ActivityTailLines is the number of log lines read per refresh.
	ActivityTailLines = 500
)

// MaxNotices bounds the notification stack.
const MaxNotices = 5

// DefaultUIInterval is the default UI refresh interval.
const DefaultUIInterval = time.Second
