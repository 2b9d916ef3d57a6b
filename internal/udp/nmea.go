package udp

import (
	"fmt"
	"strconv"

	nmea "github.com/adrianmo/go-nmea"

	"compass-ng/internal/fixedpt"
)

const DefaultTalker = "HC" // magnetic compass

// HDM formats a magnetic heading sentence, e.g. "$HCHDM,90.0,M*10\r\n".
func HDM(talker string, h fixedpt.BRad) string {
	if len(talker) != 2 {
		talker = DefaultTalker
	}
	deg := h.Normalize().Degrees()
	if deg >= 359.95 {
		deg = 0 // would print as 360.0
	}
	body := talker + "HDM," + strconv.FormatFloat(deg, 'f', 1, 64) + ",M"
	return fmt.Sprintf("%s%s%s%s\r\n", nmea.SentenceStart, body, nmea.ChecksumSep, nmea.Checksum(body))
}

// HeadingSender broadcasts each heading as an HDM sentence.
type HeadingSender struct {
	b      *Broadcaster
	talker string
}

func NewHeadingSender(b *Broadcaster, talker string) *HeadingSender {
	return &HeadingSender{b: b, talker: talker}
}

func (s *HeadingSender) SendHeading(h fixedpt.BRad) error {
	return s.b.Send([]byte(HDM(s.talker, h)))
}

func (s *HeadingSender) Close() error { return s.b.Close() }
