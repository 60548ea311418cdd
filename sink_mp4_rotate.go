package dualcam

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// The mp4 muxer has no API for the track display matrix, so the capture
// orientation is written into the finished file directly: the tkhd box of
// the video track carries a 3x3 fixed-point matrix that players apply at
// display time.

// displayMatrix returns the tkhd matrix for a rotation, in box order
// (a, b, u, c, d, v, tx, ty, w). Elements are 16.16 fixed point except the
// rightmost column, which is 2.30.
func displayMatrix(o Orientation, width, height int) [9]int32 {
	const one = 1 << 16
	const unity = 1 << 30
	switch o {
	case Orientation90:
		return [9]int32{0, one, 0, -one, 0, 0, int32(height) << 16, 0, unity}
	case Orientation180:
		return [9]int32{-one, 0, 0, 0, -one, 0, int32(width) << 16, int32(height) << 16, unity}
	case Orientation270:
		return [9]int32{0, -one, 0, one, 0, 0, 0, int32(width) << 16, unity}
	default:
		return [9]int32{one, 0, 0, 0, one, 0, 0, 0, unity}
	}
}

// boxRange is the payload extent of one located box.
type boxRange struct {
	start int64
	end   int64
}

// findBox scans [start, end) for the first box of the given type.
func findBox(r io.ReaderAt, start, end int64, typ string) (boxRange, error) {
	var hdr [8]byte
	for off := start; off+8 <= end; {
		if _, err := r.ReadAt(hdr[:], off); err != nil {
			return boxRange{}, err
		}
		size := int64(binary.BigEndian.Uint32(hdr[:4]))
		payload := off + 8
		switch size {
		case 0:
			// Box extends to the end of the enclosing range.
			size = end - off
		case 1:
			var ext [8]byte
			if _, err := r.ReadAt(ext[:], off+8); err != nil {
				return boxRange{}, err
			}
			size = int64(binary.BigEndian.Uint64(ext[:]))
			payload = off + 16
		}
		if size < 8 || off+size > end {
			return boxRange{}, fmt.Errorf("malformed box %q at offset %d", hdr[4:8], off)
		}
		if string(hdr[4:8]) == typ {
			return boxRange{start: payload, end: off + size}, nil
		}
		off += size
	}
	return boxRange{}, fmt.Errorf("box %q not found", typ)
}

// writeDisplayMatrix rewrites the display matrix of every video track
// header in a finalized file. Fails if the file has no video track.
func writeDisplayMatrix(path string, o Orientation, width, height int) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	moov, err := findBox(f, 0, info.Size(), "moov")
	if err != nil {
		return err
	}

	matrix := displayMatrix(o, width, height)
	var buf [36]byte
	for i, v := range matrix {
		binary.BigEndian.PutUint32(buf[i*4:], uint32(v))
	}

	patched := false
	for off := moov.start; off < moov.end; {
		trak, err := findBox(f, off, moov.end, "trak")
		if err != nil {
			break
		}
		tkhd, err := findBox(f, trak.start, trak.end, "tkhd")
		if err == nil {
			ok, err := patchTkhdMatrix(f, tkhd, buf)
			if err != nil {
				return err
			}
			patched = patched || ok
		}
		off = trak.end
	}
	if !patched {
		return fmt.Errorf("no video track header in %s", path)
	}
	return nil
}

// patchTkhdMatrix writes the matrix into one track header. Audio tracks
// carry no presentation size and are left untouched.
func patchTkhdMatrix(f *os.File, box boxRange, matrix [36]byte) (bool, error) {
	var version [1]byte
	if _, err := f.ReadAt(version[:], box.start); err != nil {
		return false, err
	}

	// version+flags, the version-dependent timing fields, then
	// reserved/layer/group/volume precede the matrix.
	matrixOff := box.start + 4 + 20 + 16
	if version[0] == 1 {
		matrixOff = box.start + 4 + 32 + 16
	}
	if matrixOff+44 > box.end {
		return false, fmt.Errorf("track header truncated at offset %d", box.start)
	}

	var dims [8]byte
	if _, err := f.ReadAt(dims[:], matrixOff+36); err != nil {
		return false, err
	}
	if binary.BigEndian.Uint32(dims[:4]) == 0 || binary.BigEndian.Uint32(dims[4:]) == 0 {
		return false, nil
	}

	if _, err := f.WriteAt(matrix[:], matrixOff); err != nil {
		return false, err
	}
	return true, nil
}
