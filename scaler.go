package dualcam

// Region drawing for I420 canvases. Each camera stream is scaled with
// bilinear interpolation into its layout rectangle, cropping the source
// center so the region is always filled without distortion (aspect-fill).

// region is a placement rectangle on the composite canvas.
// Coordinates and dimensions are rounded to even values so the half-rate
// chroma planes stay aligned.
type region struct {
	X, Y, W, H int
}

func (r region) even() region {
	return region{
		X: r.X &^ 1,
		Y: r.Y &^ 1,
		W: (r.W + 1) &^ 1,
		H: (r.H + 1) &^ 1,
	}
}

// fillCrop returns the centered source rectangle whose aspect ratio matches
// the destination region. The rest of the source is cropped away.
func fillCrop(srcW, srcH, dstW, dstH int) (x, y, w, h int) {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return 0, 0, srcW, srcH
	}

	srcAspect := float64(srcW) / float64(srcH)
	dstAspect := float64(dstW) / float64(dstH)

	if srcAspect > dstAspect {
		// Source is wider, crop horizontally.
		w = int(float64(srcH) * dstAspect)
		w &^= 1
		if w <= 0 {
			w = 2
		}
		return ((srcW - w) / 2) &^ 1, 0, w, srcH
	}
	if srcAspect < dstAspect {
		// Source is taller, crop vertically.
		h = int(float64(srcW) / dstAspect)
		h &^= 1
		if h <= 0 {
			h = 2
		}
		return 0, ((srcH - h) / 2) &^ 1, srcW, h
	}
	return 0, 0, srcW, srcH
}

// drawRegion scales src into the given rectangle of the I420 canvas dst,
// cropping the source center to the region's aspect ratio. Both frames
// must be I420.
func drawRegion(dst *VideoFrame, r region, src *VideoFrame) {
	r = r.even()
	if r.W <= 0 || r.H <= 0 {
		return
	}
	// Clamp the region to the canvas.
	if r.X < 0 || r.Y < 0 || r.X+r.W > dst.Width || r.Y+r.H > dst.Height {
		return
	}

	cx, cy, cw, ch := fillCrop(src.Width, src.Height, r.W, r.H)

	scaleCropPlane(src.Data[0], src.Stride[0], cx, cy, cw, ch,
		dst.Data[0], dst.Stride[0], r.X, r.Y, r.W, r.H)
	scaleCropPlane(src.Data[1], src.Stride[1], cx/2, cy/2, cw/2, ch/2,
		dst.Data[1], dst.Stride[1], r.X/2, r.Y/2, r.W/2, r.H/2)
	scaleCropPlane(src.Data[2], src.Stride[2], cx/2, cy/2, cw/2, ch/2,
		dst.Data[2], dst.Stride[2], r.X/2, r.Y/2, r.W/2, r.H/2)
}

// scaleCropPlane scales the source crop window into a destination window
// using bilinear interpolation with 16.16 fixed-point coordinates.
func scaleCropPlane(src []byte, srcStride, cropX, cropY, cropW, cropH int,
	dst []byte, dstStride, dstX, dstY, dstW, dstH int) {

	if cropW <= 0 || cropH <= 0 || dstW <= 0 || dstH <= 0 {
		return
	}

	xRatio := (cropW << 16) / dstW
	yRatio := (cropH << 16) / dstH

	for y := 0; y < dstH; y++ {
		srcYFP := y * yRatio
		srcYInt := srcYFP >> 16
		srcYFrac := srcYFP & 0xFFFF

		y0 := srcYInt + cropY
		y1 := y0 + 1
		if y1 >= cropY+cropH {
			y1 = y0
		}

		dstRow := (dstY + y) * dstStride

		for x := 0; x < dstW; x++ {
			srcXFP := x * xRatio
			srcXInt := srcXFP >> 16
			srcXFrac := srcXFP & 0xFFFF

			x0 := srcXInt + cropX
			x1 := x0 + 1
			if x1 >= cropX+cropW {
				x1 = x0
			}

			p00 := int(src[y0*srcStride+x0])
			p10 := int(src[y0*srcStride+x1])
			p01 := int(src[y1*srcStride+x0])
			p11 := int(src[y1*srcStride+x1])

			top := (p00*(0x10000-srcXFrac) + p10*srcXFrac) >> 16
			bottom := (p01*(0x10000-srcXFrac) + p11*srcXFrac) >> 16
			result := (top*(0x10000-srcYFrac) + bottom*srcYFrac) >> 16

			dst[dstRow+dstX+x] = byte(result)
		}
	}
}

// clearI420 fills the whole canvas with a solid YUV color.
func clearI420(f *VideoFrame, y, u, v byte) {
	fillBytes(f.Data[0], y)
	fillBytes(f.Data[1], u)
	fillBytes(f.Data[2], v)
}

func fillBytes(b []byte, v byte) {
	if len(b) == 0 {
		return
	}
	b[0] = v
	for i := 1; i < len(b); i *= 2 {
		copy(b[i:], b[:i])
	}
}
