package middleware

import (
	"net"

	"github.com/labstack/echo/v4"
)

// ClientIPExtractor decides what c.RealIP returns, and with it the rate
// limit identifier and the audited IP. With no trusted proxies the TCP peer
// address is used and forwarding headers are ignored. Otherwise
// X-Forwarded-For is followed only through the listed ranges.
func ClientIPExtractor(trusted []*net.IPNet) echo.IPExtractor {
	if len(trusted) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, n := range trusted {
		opts = append(opts, echo.TrustIPRange(n))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}
