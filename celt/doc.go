// Package celt implements the CELT layer of the Opus decoder as specified
// in RFC 6716 Section 4.3.
//
// A Decoder turns one CELT frame, a byte buffer plus its duration class and
// channel count, into PCM. It owns everything that carries over from one
// frame to the next: band energies and their history, the synthesis buffer
// used for overlap-add and the comb filter, the post-filter parameters,
// the de-emphasis memory and the folding seed. Frames of one stream must be
// decoded in order by a single goroutine.
//
// The arithmetic follows the libopus float decoder. The stages, in frame
// order, are:
//
//  1. Side information: silence, post-filter, transient and intra flags.
//  2. Coarse band energy (Laplace coded, predicted in time and frequency).
//  3. Time/frequency resolution, spreading, dynamic allocation and trim.
//  4. Bit allocation and fine energy.
//  5. PVQ band shapes, including stereo coupling and spectral folding.
//  6. Anti-collapse, denormalization, inverse MDCT and overlap-add.
//  7. Comb post-filter and de-emphasis.
package celt
