package narration

import (
	"encoding/binary"
	"fmt"
)

// WAVSeconds reads the playback length of a RIFF/WAVE PCM buffer.
func WAVSeconds(data []byte) (float64, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, fmt.Errorf("not a wav file")
	}
	var byteRate uint32
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := binary.LittleEndian.Uint32(data[pos+4 : pos+8])
		body := pos + 8
		switch id {
		case "fmt ":
			if body+12 > len(data) {
				return 0, fmt.Errorf("truncated wav fmt chunk")
			}
			byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
		case "data":
			if byteRate == 0 {
				return 0, fmt.Errorf("wav data before fmt chunk")
			}
			avail := uint32(len(data) - body)
			if size > avail {
				size = avail
			}
			return float64(size) / float64(byteRate), nil
		}
		pos = body + int(size) + int(size%2)
	}
	return 0, fmt.Errorf("wav has no data chunk")
}
