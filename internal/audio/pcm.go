package audio

import (
	"encoding/base64"
	"encoding/binary"
	"math"
)

// EncodePCM16 converts normalized float samples to little-endian 16-bit PCM.
// Samples outside [-1, 1] are clamped first, so hot input saturates at full
// scale instead of wrapping. Negative samples scale by 32768 and positive by
// 32767 so both -1.0 and 1.0 map onto the extremes of the int16 range.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := float64(s)
		if v > 1.0 {
			v = 1.0
		} else if v < -1.0 {
			v = -1.0
		}

		var n int16
		if v < 0 {
			n = int16(math.Round(v * 32768))
		} else {
			n = int16(math.Round(v * 32767))
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(n))
	}
	return out
}

// EncodeBase64 returns a PCM byte buffer as standard base64, ready to embed
// in an outbound audio chunk message.
func EncodeBase64(pcm []byte) string {
	return base64.StdEncoding.EncodeToString(pcm)
}
