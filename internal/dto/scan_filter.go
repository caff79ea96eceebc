// ScanFilter narrows the scan history list.
package dto

import "time"

type ScanFilter struct {
	Type       string
	Code       string
	DateAfter  time.Time
	DateBefore time.Time
	Limit      int
	Offset     int
}
