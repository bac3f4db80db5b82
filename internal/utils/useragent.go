package utils

import (
	"strings"

	ua "github.com/mssola/user_agent"
)

// Device types recorded as a booking's source
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
	DeviceUnknown = "unknown"
)

var tabletIndicators = []string{
	"ipad",
	"tablet",
	"kindle",
	"playbook",
	"nexus 7",
	"nexus 9",
	"nexus 10",
	"xoom",
	"sm-t", // Samsung tablets
}

// DeviceType classifies a User-Agent string as mobile, tablet or desktop
func DeviceType(userAgent string) string {
	if userAgent == "" || userAgent == "Unknown" {
		return DeviceUnknown
	}

	parser := ua.New(userAgent)
	if isTablet(userAgent) {
		return DeviceTablet
	}
	if parser.Mobile() {
		return DeviceMobile
	}
	return DeviceDesktop
}

func isTablet(userAgent string) bool {
	lower := strings.ToLower(userAgent)
	for _, indicator := range tabletIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}
