// Package audio decodes WAV clips and plays them through the system audio
// device using oto/v3. All clips are converted to the device format
// (44.1 kHz, mono, signed 16-bit) before playback.
package audio
