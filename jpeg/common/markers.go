package common

// JPEG marker codes used by the decoders
const (
	MarkerSOI = 0xFFD8
	MarkerEOI = 0xFFD9

	MarkerSOF0  = 0xFFC0 // Baseline DCT
	MarkerSOF1  = 0xFFC1 // Extended sequential DCT
	MarkerSOF2  = 0xFFC2 // Progressive DCT
	MarkerSOF3  = 0xFFC3 // Lossless, Huffman
	MarkerSOF11 = 0xFFCB // Lossless, arithmetic

	MarkerDHT = 0xFFC4
	MarkerDQT = 0xFFDB
	MarkerDRI = 0xFFDD
	MarkerSOS = 0xFFDA

	MarkerRST0 = 0xFFD0
	MarkerRST7 = 0xFFD7
)

// IsSOF reports whether marker starts a frame. DHT (C4), JPG (C8) and DAC (CC)
// share the range but are not frame markers.
func IsSOF(marker uint16) bool {
	if marker < MarkerSOF0 || marker > 0xFFCF {
		return false
	}
	return marker != MarkerDHT && marker != 0xFFC8 && marker != 0xFFCC
}

// IsRST reports whether marker is a restart marker
func IsRST(marker uint16) bool {
	return marker >= MarkerRST0 && marker <= MarkerRST7
}

// HasLength reports whether marker is followed by a length-prefixed segment
func HasLength(marker uint16) bool {
	return marker != MarkerSOI && marker != MarkerEOI && !IsRST(marker)
}
