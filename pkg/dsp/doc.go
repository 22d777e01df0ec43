// Package dsp holds the numerical building blocks of the conditioning and
// analysis stages: IIR notch design, zero-phase filtering, Butterworth
// smoothing, Fourier resampling and amplitude scaling.
package dsp
