// Package device classifies the client that submitted a signature.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

const (
	ClassMobile  = "Mobile"
	ClassDesktop = "Desktop"
	ClassUnknown = "Unknown"
)

// Info is what the signature ledger records about the signing client.
type Info struct {
	Class       string
	DisplayName string
}

// Parse reads a User-Agent header. An empty header yields ClassUnknown.
func Parse(userAgent string) Info {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return Info{Class: ClassUnknown, DisplayName: "Unknown Device"}
	}
	ua := useragent.New(userAgent)
	class := ClassDesktop
	if ua.Mobile() {
		class = ClassMobile
	}
	return Info{Class: class, DisplayName: displayName(ua)}
}

// Describe is the ledger's Device column, e.g. "Mobile (Safari on iPhone OS 17_0)".
func Describe(userAgent string) string {
	info := Parse(userAgent)
	if info.Class == ClassUnknown {
		return info.Class
	}
	return info.Class + " (" + info.DisplayName + ")"
}

func displayName(ua *useragent.UserAgent) string {
	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}
	os := ua.OS()
	if os == "" {
		os = ua.Platform()
	}
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(browser + " on " + os)
}
