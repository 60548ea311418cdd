//go:build darwin || linux

// Optional native compositor acceleration via libdualcam_accel using purego.
// When the library is not present the compositor silently falls back to the
// pure Go scaler, so nothing here is required for correct output.

package dualcam

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

var (
	accelOnce    sync.Once
	accelHandle  uintptr
	accelInitErr error
	accelLoaded  bool
)

// libdualcam_accel function pointers
var (
	accelCreateFn  func(width, height int32) uintptr
	accelDestroyFn func(ctx uintptr)
	accelClearFn   func(ctx uintptr, y, u, v uint8)
	accelBlendFn   func(ctx uintptr, srcY, srcU, srcV uintptr, srcW, srcH, srcStrideY, srcStrideUV int32, rect uintptr)
	accelResultFn  func(ctx uintptr, outY, outU, outV, outStrideY, outStrideUV uintptr)
	accelFinishFn  func(ctx uintptr)
)

// accelRectC matches the C struct describing a destination rectangle.
type accelRectC struct {
	X      int32
	Y      int32
	Width  int32
	Height int32
}

func loadAccel() error {
	accelOnce.Do(func() {
		accelInitErr = loadAccelLib()
		if accelInitErr == nil {
			accelLoaded = true
		}
	})
	return accelInitErr
}

func loadAccelLib() error {
	paths := accelLibPaths()

	var lastErr error
	for _, path := range paths {
		handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			accelHandle = handle
			loadAccelSymbols()
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to load libdualcam_accel: %w", lastErr)
	}
	return errors.New("libdualcam_accel not found in any standard location")
}

func accelLibPaths() []string {
	var paths []string

	libName := "libdualcam_accel.so"
	if runtime.GOOS == "darwin" {
		libName = "libdualcam_accel.dylib"
	}

	// Environment variable overrides
	if envPath := os.Getenv("DUALCAM_ACCEL_LIB_PATH"); envPath != "" {
		paths = append(paths, envPath)
	}
	if envPath := os.Getenv("DUALCAM_SDK_LIB_PATH"); envPath != "" {
		paths = append(paths, filepath.Join(envPath, libName))
	}

	// Next to the executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, libName),
			filepath.Join(exeDir, "..", "lib", libName),
		)
	}

	// Build directory relative to the working directory
	if wd, err := os.Getwd(); err == nil {
		paths = append(paths,
			filepath.Join(wd, "build", libName),
			filepath.Join(wd, "..", "build", libName),
		)
	}

	// System paths
	switch runtime.GOOS {
	case "darwin":
		paths = append(paths,
			libName,
			"/usr/local/lib/"+libName,
			"/opt/homebrew/lib/"+libName,
		)
	case "linux":
		paths = append(paths,
			libName,
			"/usr/local/lib/"+libName,
			"/usr/lib/"+libName,
		)
	}

	return paths
}

func loadAccelSymbols() {
	purego.RegisterLibFunc(&accelCreateFn, accelHandle, "dualcam_accel_create")
	purego.RegisterLibFunc(&accelDestroyFn, accelHandle, "dualcam_accel_destroy")
	purego.RegisterLibFunc(&accelClearFn, accelHandle, "dualcam_accel_clear")
	purego.RegisterLibFunc(&accelBlendFn, accelHandle, "dualcam_accel_blend_scaled")
	purego.RegisterLibFunc(&accelResultFn, accelHandle, "dualcam_accel_get_result")
	purego.RegisterLibFunc(&accelFinishFn, accelHandle, "dualcam_accel_finish")
}

// AccelAvailable checks whether the native acceleration library can be loaded.
func AccelAvailable() bool {
	if err := loadAccel(); err != nil {
		return false
	}
	return accelLoaded
}

// accelBackend wraps one native accelerator context. All calls are made from
// within the compositor's critical section, so no additional locking is
// needed here.
type accelBackend struct {
	handle uintptr
	width  int
	height int
}

func newAccelBackend(width, height int) (*accelBackend, error) {
	if err := loadAccel(); err != nil {
		return nil, err
	}

	handle := accelCreateFn(int32(width), int32(height))
	if handle == 0 {
		return nil, errors.New("failed to create accelerator context")
	}

	return &accelBackend{handle: handle, width: width, height: height}, nil
}

func (a *accelBackend) destroy() {
	if a.handle != 0 && accelDestroyFn != nil {
		accelDestroyFn(a.handle)
		a.handle = 0
	}
}

func (a *accelBackend) clear(y, u, v byte) {
	if a.handle != 0 && accelClearFn != nil {
		accelClearFn(a.handle, y, u, v)
	}
}

// blendScaled scales frame into the destination rectangle on the canvas.
func (a *accelBackend) blendScaled(frame *VideoFrame, r region) {
	if a.handle == 0 || accelBlendFn == nil || frame == nil {
		return
	}

	rect := accelRectC{
		X:      int32(r.X),
		Y:      int32(r.Y),
		Width:  int32(r.W),
		Height: int32(r.H),
	}

	var yPtr, uPtr, vPtr uintptr
	if len(frame.Data[0]) > 0 {
		yPtr = uintptr(unsafe.Pointer(&frame.Data[0][0]))
	}
	if len(frame.Data[1]) > 0 {
		uPtr = uintptr(unsafe.Pointer(&frame.Data[1][0]))
	}
	if len(frame.Data[2]) > 0 {
		vPtr = uintptr(unsafe.Pointer(&frame.Data[2][0]))
	}

	accelBlendFn(
		a.handle,
		yPtr, uPtr, vPtr,
		int32(frame.Width), int32(frame.Height),
		int32(frame.Stride[0]), int32(frame.Stride[1]),
		uintptr(unsafe.Pointer(&rect)),
	)
}

// result copies the composited canvas out of native memory.
func (a *accelBackend) result() (y, u, v []byte, strideY, strideUV int) {
	if a.handle == 0 || accelResultFn == nil {
		return nil, nil, nil, 0, 0
	}

	var outY, outU, outV uintptr
	var outStrideY, outStrideUV int32
	accelResultFn(
		a.handle,
		uintptr(unsafe.Pointer(&outY)),
		uintptr(unsafe.Pointer(&outU)),
		uintptr(unsafe.Pointer(&outV)),
		uintptr(unsafe.Pointer(&outStrideY)),
		uintptr(unsafe.Pointer(&outStrideUV)),
	)

	if outY == 0 || outU == 0 || outV == 0 {
		return nil, nil, nil, 0, 0
	}

	sizeY := int(outStrideY) * a.height
	sizeUV := int(outStrideUV) * (a.height / 2)

	y = make([]byte, sizeY)
	u = make([]byte, sizeUV)
	v = make([]byte, sizeUV)

	copy(y, unsafe.Slice((*byte)(unsafe.Pointer(outY)), sizeY))
	copy(u, unsafe.Slice((*byte)(unsafe.Pointer(outU)), sizeUV))
	copy(v, unsafe.Slice((*byte)(unsafe.Pointer(outV)), sizeUV))

	return y, u, v, int(outStrideY), int(outStrideUV)
}

// finish blocks until the accelerator has completed all submitted work.
// Called from the stop sequence before the writers are closed.
func (a *accelBackend) finish() {
	if a.handle != 0 && accelFinishFn != nil {
		accelFinishFn(a.handle)
	}
}
