package fingerprint

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/soundprint/audiodetective/internal/dsp"
)

// Descriptor identifies the geometric relation between an anchor landmark and
// one landmark in its target zone. It is stable across independent
// computations of the same audio and is used as a hash key.
type Descriptor struct {
	AnchorFrequency int
	PointFrequency  int
	DeltaTime       int
}

// String serializes a descriptor as "anchor,point,delta". The format
// round-trips exactly through ParseDescriptor and doubles as the storage key.
func (d Descriptor) String() string {
	return fmt.Sprintf("%d,%d,%d", d.AnchorFrequency, d.PointFrequency, d.DeltaTime)
}

// ParseDescriptor parses the serialization produced by Descriptor.String.
func ParseDescriptor(s string) (Descriptor, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return Descriptor{}, fmt.Errorf("fingerprint: malformed descriptor %q", s)
	}
	values := make([]int, 3)
	for i, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil {
			return Descriptor{}, fmt.Errorf("fingerprint: malformed descriptor %q: %w", s, err)
		}
		values[i] = v
	}
	return Descriptor{AnchorFrequency: values[0], PointFrequency: values[1], DeltaTime: values[2]}, nil
}

// Fingerprint maps each descriptor to the set of anchor time indices at which
// it occurred. It is the unit of storage and comparison; two fingerprints are
// comparable only if computed with identical parameters and sampling
// frequency.
type Fingerprint map[Descriptor]map[int]struct{}

// Add records an anchor time for a descriptor.
func (fp Fingerprint) Add(d Descriptor, time int) {
	times, ok := fp[d]
	if !ok {
		times = make(map[int]struct{})
		fp[d] = times
	}
	times[time] = struct{}{}
}

// Params controls fingerprint generation.
type Params struct {
	// WindowLength and WindowOverlap configure the STFT framing.
	WindowLength  int
	WindowOverlap int
	// TimeBinSize and FrequencyBinSize quantize feature point indices by
	// integer floor division.
	TimeBinSize      int
	FrequencyBinSize int
	// MinTimeOffset and MaxTimeOffset bound the target zone in quantized time
	// frames ahead of the anchor; MaxFrequencyOffset bounds it in quantized
	// bins around the anchor frequency. ZoneSize caps the zone at the first N
	// points found in sorted order.
	MinTimeOffset      int
	MaxTimeOffset      int
	MaxFrequencyOffset int
	ZoneSize           int
}

// DefaultParams returns the fingerprint generation parameters used across the
// system. Fingerprints computed with different parameters must not be matched
// against each other.
func DefaultParams() Params {
	return Params{
		WindowLength:       1024,
		WindowOverlap:      512,
		TimeBinSize:        1,
		FrequencyBinSize:   1,
		MinTimeOffset:      32,
		MaxTimeOffset:      128,
		MaxFrequencyOffset: 128,
		ZoneSize:           8,
	}
}

// FromSignal computes the fingerprint of an audio signal: Hamming-windowed
// PSD spectrogram with the DC and top two bins dropped, feature point
// extraction with default feature parameters, quantization, and landmark-pair
// generation. Silent or degenerate audio yields an empty fingerprint, not an
// error.
func FromSignal(signal []float64, samplingFrequency float64, params Params) (Fingerprint, error) {
	window := dsp.Hamming(params.WindowLength)
	spectrogram, err := dsp.RealSpectrogram(signal, samplingFrequency, window, params.WindowOverlap, 0)
	if err != nil {
		return nil, err
	}
	spectrogram = spectrogram.TrimEdges()
	timeIndices, frequencyIndices := ExtractFeaturePoints(spectrogram, DefaultFeatureParams())
	times := quantize(timeIndices, params.TimeBinSize)
	frequencies := quantize(frequencyIndices, params.FrequencyBinSize)
	return FromPoints(times, frequencies, params), nil
}

// quantize floor-divides every value by the bin size.
func quantize(values []int, binSize int) []int {
	out := make([]int, len(values))
	for i, v := range values {
		out[i] = v / binSize
	}
	return out
}

type point struct {
	time      int
	frequency int
}

// FromPoints builds a fingerprint from quantized feature points. Points are
// sorted by (time, frequency) first, so the result is identical for any input
// order. Every point acts as an anchor whose target zone is the first
// ZoneSize points p with anchor.time+MinTimeOffset <= p.time <=
// anchor.time+MaxTimeOffset and |p.frequency-anchor.frequency| <=
// MaxFrequencyOffset, in sorted order.
func FromPoints(times, frequencies []int, params Params) Fingerprint {
	points := make([]point, len(times))
	for i := range points {
		points[i] = point{time: times[i], frequency: frequencies[i]}
	}
	sort.Slice(points, func(i, j int) bool {
		if points[i].time != points[j].time {
			return points[i].time < points[j].time
		}
		return points[i].frequency < points[j].frequency
	})

	fp := make(Fingerprint)
	for _, anchor := range points {
		minTime := anchor.time + params.MinTimeOffset
		maxTime := anchor.time + params.MaxTimeOffset
		zone := 0
		for _, p := range points {
			if p.time > maxTime || zone >= params.ZoneSize {
				break
			}
			if p.time < minTime {
				continue
			}
			if abs(p.frequency-anchor.frequency) > params.MaxFrequencyOffset {
				continue
			}
			fp.Add(Descriptor{
				AnchorFrequency: anchor.frequency,
				PointFrequency:  p.frequency,
				DeltaTime:       p.time - anchor.time,
			}, anchor.time)
			zone++
		}
	}
	return fp
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
