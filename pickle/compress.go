// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package pickle

import (
	"encoding/binary"
	"errors"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"
)

// Compressed frames wrap a pickle blob for storage or
// transport of large result sets:
//
//	"PQLZ" | u32 raw length | 32-byte BLAKE2b-256 of the
//	raw blob | zstd-compressed blob
//
// The checksum covers the uncompressed pickle, so corruption
// is detected even when the compressed stream happens to
// decode.

var frameMagic = [4]byte{'P', 'Q', 'L', 'Z'}

const frameHeaderSize = 4 + 4 + 32

// maxFrameSize bounds the decoded size a frame may declare.
const maxFrameSize = 1 << 30

// ErrChecksum indicates frame contents that do not match
// their checksum.
var ErrChecksum = errors.New("pickle: frame checksum mismatch")

var (
	zstdEnc *zstd.Encoder
	zstdDec *zstd.Decoder
)

func init() {
	var err error
	zstdEnc, err = zstd.NewWriter(nil)
	if err != nil {
		panic(err)
	}
	zstdDec, err = zstd.NewReader(nil)
	if err != nil {
		panic(err)
	}
}

// CompressFrame wraps an encoded pickle in a compressed,
// checksummed frame.
func CompressFrame(blob []byte) []byte {
	dst := make([]byte, frameHeaderSize, frameHeaderSize+len(blob)/2)
	copy(dst, frameMagic[:])
	binary.BigEndian.PutUint32(dst[4:], uint32(len(blob)))
	sum := blake2b.Sum256(blob)
	copy(dst[8:], sum[:])
	return zstdEnc.EncodeAll(blob, dst)
}

// DecompressFrame unwraps a frame produced by CompressFrame,
// returning the raw pickle blob.
func DecompressFrame(buf []byte) ([]byte, error) {
	if len(buf) < frameHeaderSize {
		return nil, ErrTruncated
	}
	if string(buf[:4]) != string(frameMagic[:]) {
		return nil, ErrBadFormat
	}
	rawlen := binary.BigEndian.Uint32(buf[4:])
	if rawlen > maxFrameSize {
		return nil, ErrBadFormat
	}
	blob, err := zstdDec.DecodeAll(buf[frameHeaderSize:], make([]byte, 0, rawlen))
	if err != nil {
		return nil, err
	}
	if uint32(len(blob)) != rawlen {
		return nil, ErrBadFormat
	}
	sum := blake2b.Sum256(blob)
	if string(sum[:]) != string(buf[8:8+32]) {
		return nil, ErrChecksum
	}
	return blob, nil
}
