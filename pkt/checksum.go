package pkt

import (
	"github.com/google/netstack/tcpip/header"
)

// SetChecksum calculates and sets the checksum for a given packet.
// The current checksum field is irrelevant and will be overwritten.
// No more modifications to the packet should be made after setting the checksum.
func SetChecksum(packet *Packet) {
	packet.Header.Checksum = calculateChecksum(packet)
}

// calculateChecksum computes the Internet checksum of the packet with the checksum field treated as zero.
// The packet itself is not modified.
//
// Only the header and the actual payload are summed. The zero padding of the fixed-size
// record doesn't change a one's complement sum, so the result equals the checksum of the
// full record.
func calculateChecksum(packet *Packet) [2]byte {
	data := packet.ToByteArray()
	data[checksumOffset] = 0
	data[checksumOffset+1] = 0

	// header.Checksum sums 16-bit words and folds the carries back in
	checksum := ^header.Checksum(data, 0)

	return [2]byte{byte(checksum >> 8), byte(checksum & 0xFF)}
}

// VerifyChecksum validates the checksum of a packet to ensure data integrity.
// Returns true if the checksums match, false otherwise.
//
// The checksum field starts at an odd offset, so summing the frame including the stored
// checksum does not fold to 0xFFFF. The checksum is recomputed with the field zeroed instead.
// A corruption that happens to keep the 16-bit sum unchanged (e.g. two swapped words) is not detected.
func VerifyChecksum(packet *Packet) bool {
	return calculateChecksum(packet) == packet.Header.Checksum
}
