// Package h265 parses the HEVCDecoderConfigurationRecord carried in an
// MP4 hvcC box. Unlike the rest of the MP4 box parser, this is the one
// box the teacher itself decodes through a third-party library
// (github.com/abema/go-mp4) rather than by hand (spec §4.C, §9): HEVC's
// decoder-config record nests a variable number of NALU arrays, and
// go-mp4 already expresses that layout as a typed Go struct.
package h265

import (
	"bytes"
	"fmt"

	gomp4 "github.com/abema/go-mp4"
	mch265 "github.com/bluenviron/mediacommon/v2/pkg/codecs/h265"
)

// DecoderConfig holds the VPS/SPS/PPS NALUs extracted from a
// HEVCDecoderConfigurationRecord, keyed by parameter-set kind rather
// than by array position, since a conformant record may list its NALU
// arrays in any order.
type DecoderConfig struct {
	VPS [][]byte
	SPS [][]byte
	PPS [][]byte
}

// ParseDecoderConfig decodes a HEVCDecoderConfigurationRecord.
func ParseDecoderConfig(raw []byte) (*DecoderConfig, error) {
	var hvcc gomp4.HvcC
	if _, err := gomp4.Unmarshal(bytes.NewReader(raw), uint64(len(raw)), &hvcc, gomp4.Context{}); err != nil {
		return nil, fmt.Errorf("invalid HEVC decoder configuration: %w", err)
	}

	cfg := &DecoderConfig{}
	for _, arr := range hvcc.NaluArrays {
		for _, n := range arr.Nalus {
			switch mch265.NALUType(arr.NaluType) {
			case mch265.NALUType_VPS_NUT:
				cfg.VPS = append(cfg.VPS, n.NALUnit)
			case mch265.NALUType_SPS_NUT:
				cfg.SPS = append(cfg.SPS, n.NALUnit)
			case mch265.NALUType_PPS_NUT:
				cfg.PPS = append(cfg.PPS, n.NALUnit)
			}
		}
	}

	return cfg, nil
}

// OrderedParameterSets returns every VPS, then every SPS, then every
// PPS, the emission order spec §4.D.1 requires regardless of how the
// record itself ordered its NALU arrays.
func (c *DecoderConfig) OrderedParameterSets() [][]byte {
	out := make([][]byte, 0, len(c.VPS)+len(c.SPS)+len(c.PPS))
	out = append(out, c.VPS...)
	out = append(out, c.SPS...)
	out = append(out, c.PPS...)
	return out
}

// NALUType returns the NAL unit type of a single Annex-B/AVCC-framed
// HEVC NALU (the 6 bits following the forbidden-zero bit in its first
// header byte, ahead of the layer ID).
func NALUType(nalu []byte) mch265.NALUType {
	if len(nalu) == 0 {
		return 0
	}
	return mch265.NALUType((nalu[0] >> 1) & 0x3F)
}

// IsParameterSet reports whether typ is VPS, SPS, or PPS.
func IsParameterSet(typ mch265.NALUType) bool {
	switch typ {
	case mch265.NALUType_VPS_NUT, mch265.NALUType_SPS_NUT, mch265.NALUType_PPS_NUT:
		return true
	default:
		return false
	}
}

// IsIDR reports whether typ is an IDR NAL unit (a random-access point
// carrying no reference to prior pictures).
func IsIDR(typ mch265.NALUType) bool {
	switch typ {
	case mch265.NALUType_IDR_W_RADL, mch265.NALUType_IDR_N_LP:
		return true
	default:
		return false
	}
}
