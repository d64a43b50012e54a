package device

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

type DeviceSuite struct {
	suite.Suite
}

func TestDeviceSuite(t *testing.T) {
	suite.Run(t, new(DeviceSuite))
}

func (s *DeviceSuite) TestParse() {
	s.Run("empty user agent is unknown", func() {
		info := Parse("")
		s.Equal(ClassUnknown, info.Class)
		s.Equal("Unknown", Describe(""))
	})

	s.Run("chrome on desktop", func() {
		info := Parse("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		s.Equal(ClassDesktop, info.Class)
		s.Contains(info.DisplayName, "Chrome")
		s.Contains(info.DisplayName, " on ")
	})

	s.Run("safari on iphone is mobile", func() {
		info := Parse("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1")
		s.Equal(ClassMobile, info.Class)
		s.Contains(info.DisplayName, "iPhone")
	})

	s.Run("describe has no stray whitespace", func() {
		d := Describe("Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0")
		s.True(strings.HasPrefix(d, ClassDesktop+" ("))
		s.Equal(d, strings.TrimSpace(d))
		s.NotContains(d, "  ")
	})
}
