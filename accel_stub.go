//go:build !darwin && !linux

package dualcam

import "errors"

// Native acceleration is only wired on darwin and linux; elsewhere the
// compositor always uses the pure Go path.

type accelBackend struct{}

// AccelAvailable checks whether the native acceleration library can be loaded.
func AccelAvailable() bool { return false }

func newAccelBackend(width, height int) (*accelBackend, error) {
	return nil, errors.New("acceleration not supported on this platform")
}

func (a *accelBackend) destroy() {}

func (a *accelBackend) clear(y, u, v byte) {}

func (a *accelBackend) blendScaled(frame *VideoFrame, r region) {}

func (a *accelBackend) result() (y, u, v []byte, strideY, strideUV int) {
	return nil, nil, nil, 0, 0
}

func (a *accelBackend) finish() {}
