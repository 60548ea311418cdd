// Package dualcam is the capture-to-disk pipeline of a dual-camera
// recording application: it receives frames from two camera streams and one
// microphone, composites the cameras into a combined view, and persists
// three independent, time-synchronized container files per recording
// (front-only, back-only, combined).
//
// Key pieces include:
//   - Recorder: the control surface (Configure / OnVideoFrame /
//     OnAudioSamples / StopWriting)
//   - Router: readiness checks and per-stream backpressure for the
//     uncoordinated hardware callbacks
//   - Compositor: stacked or picture-in-picture composition with a
//     jitter-tolerant cache that is invalidated the instant shutdown begins
//   - Coordinator: the single serialized owner of the three encoder sinks,
//     with a drain barrier so no accepted sample is lost at stop
//   - Clock: per-stream timestamp tracking and the safe session end cutoff
//
// # Architecture
//
//	camera/mic callback -> Router -> [video] Compositor -> Coordinator -> 3x Sink -> files
//
// Encoder sessions are injected via the VideoEncoder/AudioEncoder
// interfaces; on device they wrap hardware encoders. MP4Sink muxes their
// output into MP4 containers that share a common start reference, so the
// three files of one recording can be re-synchronized by external tools.
//
// # Native Acceleration
//
// Composition optionally runs on a native accelerator loaded via purego
// (libdualcam_accel, searched via DUALCAM_ACCEL_LIB_PATH or
// DUALCAM_SDK_LIB_PATH). Without it the pure Go scaler path is used; output
// is identical, only throughput differs.
package dualcam
