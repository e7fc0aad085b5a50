// Package ogg reads and writes Ogg Opus streams (RFC 7845).
//
// Reading is split in two layers. PacketReader turns the pages of one Ogg
// bitstream into whole packets; page sync, lacing and continued packets
// are handled by github.com/jonas747/ogg, and a stream that stops inside a
// page surfaces as ErrUnexpectedEOS rather than a clean io.EOF. Reader sits
// on top of it: NewReader consumes the first two packets as the OpusHead
// and OpusTags headers, exposes them as Header and Tags, and ReadPacket
// then returns the Opus audio packets in order.
//
// ParseOpusHead accepts version 1 headers only. For mapping family 0 it
// requires one or two channels. For the other families it checks that
// the stream counts and the channel mapping table agree, with 255 marking
// a silent output channel. ParseOpusTags checks that the vendor string and
// every comment are valid UTF-8 and ignores trailing data after the last
// comment.
//
// Writer is the inverse of Reader. It puts each packet on its own page,
// advances the granule position by the duration passed with the packet
// and sets EOS on the last page when closed. It exists for building test
// streams and for remuxing, so it makes no attempt at page packing.
package ogg
