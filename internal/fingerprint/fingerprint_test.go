package fingerprint

import (
	"math"
	"math/rand"
	"reflect"
	"testing"
)

func TestDescriptorRoundTrip(t *testing.T) {
	tests := []Descriptor{
		{AnchorFrequency: 0, PointFrequency: 0, DeltaTime: 0},
		{AnchorFrequency: 12, PointFrequency: 340, DeltaTime: 64},
		{AnchorFrequency: 340, PointFrequency: 12, DeltaTime: 128},
	}
	for _, want := range tests {
		got, err := ParseDescriptor(want.String())
		if err != nil {
			t.Fatalf("ParseDescriptor(%q): %v", want.String(), err)
		}
		if got != want {
			t.Errorf("round trip of %v gave %v", want, got)
		}
	}
}

func TestParseDescriptorMalformed(t *testing.T) {
	for _, s := range []string{"", "1,2", "1,2,3,4", "a,b,c", "1,2,x"} {
		if _, err := ParseDescriptor(s); err == nil {
			t.Errorf("ParseDescriptor(%q) succeeded, want error", s)
		}
	}
}

func TestFromPointsTargetZone(t *testing.T) {
	params := Params{
		TimeBinSize:        1,
		FrequencyBinSize:   1,
		MinTimeOffset:      2,
		MaxTimeOffset:      5,
		MaxFrequencyOffset: 10,
		ZoneSize:           8,
	}
	times := []int{0, 1, 3, 4, 6, 3}
	frequencies := []int{100, 100, 105, 130, 100, 95}

	fp := FromPoints(times, frequencies, params)

	// Anchor (0,100): zone is times 2..5 with |f-100| <= 10, so (3,95) and
	// (3,105); (4,130) is out of frequency range, (6,100) out of time range.
	for _, want := range []Descriptor{
		{AnchorFrequency: 100, PointFrequency: 95, DeltaTime: 3},
		{AnchorFrequency: 100, PointFrequency: 105, DeltaTime: 3},
	} {
		times, ok := fp[want]
		if !ok {
			t.Fatalf("descriptor %v missing", want)
		}
		if _, ok := times[0]; !ok {
			t.Errorf("descriptor %v missing anchor time 0", want)
		}
	}
	if _, ok := fp[Descriptor{AnchorFrequency: 100, PointFrequency: 130, DeltaTime: 4}]; ok {
		t.Error("point outside the frequency offset was paired")
	}
	if _, ok := fp[Descriptor{AnchorFrequency: 100, PointFrequency: 100, DeltaTime: 6}]; ok {
		t.Error("point outside the time offset was paired")
	}
}

func TestFromPointsZoneSizeCap(t *testing.T) {
	params := Params{
		TimeBinSize:        1,
		FrequencyBinSize:   1,
		MinTimeOffset:      1,
		MaxTimeOffset:      100,
		MaxFrequencyOffset: 100,
		ZoneSize:           3,
	}
	// One anchor at time 0 and six candidates; only the first three in
	// sorted order may be paired.
	times := []int{0, 2, 3, 4, 5, 6, 7}
	frequencies := []int{50, 50, 50, 50, 50, 50, 50}

	fp := FromPoints(times, frequencies, params)

	anchorPairs := 0
	for descriptor, anchorTimes := range fp {
		if _, ok := anchorTimes[0]; ok {
			anchorPairs++
			if descriptor.DeltaTime > 4 {
				t.Errorf("anchor 0 paired with delta %d beyond the first %d points", descriptor.DeltaTime, params.ZoneSize)
			}
		}
	}
	if anchorPairs != params.ZoneSize {
		t.Errorf("anchor 0 has %d pairs, want %d", anchorPairs, params.ZoneSize)
	}
}

func TestFromPointsDeterminism(t *testing.T) {
	params := DefaultParams()
	rng := rand.New(rand.NewSource(7))
	times := make([]int, 200)
	frequencies := make([]int, 200)
	for i := range times {
		times[i] = rng.Intn(500)
		frequencies[i] = rng.Intn(400)
	}

	want := FromPoints(times, frequencies, params)

	// Shuffle the input points; the fingerprint must be identical.
	for trial := 0; trial < 5; trial++ {
		perm := rng.Perm(len(times))
		shuffledTimes := make([]int, len(times))
		shuffledFrequencies := make([]int, len(times))
		for i, j := range perm {
			shuffledTimes[i] = times[j]
			shuffledFrequencies[i] = frequencies[j]
		}
		got := FromPoints(shuffledTimes, shuffledFrequencies, params)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("trial %d: fingerprint depends on input order", trial)
		}
	}
}

func TestQuantize(t *testing.T) {
	got := quantize([]int{0, 1, 2, 3, 4, 7, 8}, 4)
	want := []int{0, 0, 0, 0, 1, 1, 2}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("quantize = %v, want %v", got, want)
	}
}

func TestFromSignalSilence(t *testing.T) {
	signal := make([]float64, 44100)
	fp, err := FromSignal(signal, 44100, DefaultParams())
	if err != nil {
		t.Fatalf("FromSignal: %v", err)
	}
	if len(fp) != 0 {
		t.Errorf("silent audio produced %d descriptors, want 0", len(fp))
	}
}

// melody generates a sequence of enveloped sine notes, noteDuration seconds
// each. The per-note envelope peaks mid-note, giving every note a sharp,
// reproducible landmark.
func melody(frequencies []float64, noteDuration, samplingFrequency float64) []float64 {
	noteSamples := int(noteDuration * samplingFrequency)
	signal := make([]float64, noteSamples*len(frequencies))
	for n, frequency := range frequencies {
		for i := 0; i < noteSamples; i++ {
			envelope := math.Sin(math.Pi * float64(i) / float64(noteSamples))
			envelope *= envelope
			signal[n*noteSamples+i] = envelope * math.Sin(2*math.Pi*frequency*float64(i)/samplingFrequency)
		}
	}
	return signal
}

func TestFromSignalEndToEnd(t *testing.T) {
	const samplingFrequency = 44100
	params := DefaultParams()

	// Two seconds of melody; consecutive notes are spaced far enough apart
	// in frequency that no note suppresses its neighbors.
	notes := []float64{440, 1000, 620, 1400, 800, 1800, 520, 1150}
	reference := melody(notes, 0.25, samplingFrequency)
	referenceFP, err := FromSignal(reference, samplingFrequency, params)
	if err != nil {
		t.Fatalf("FromSignal(reference): %v", err)
	}
	if len(referenceFP) == 0 {
		t.Fatal("reference fingerprint is empty")
	}

	// The same melody half a second later, with light noise on top.
	rng := rand.New(rand.NewSource(1))
	shift := samplingFrequency / 2
	query := make([]float64, shift+len(reference))
	copy(query[shift:], reference)
	for i := range query {
		query[i] += 0.01 * (rng.Float64()*2 - 1)
	}
	queryFP, err := FromSignal(query, samplingFrequency, params)
	if err != nil {
		t.Fatalf("FromSignal(query): %v", err)
	}

	shared := 0
	deltaVotes := make(map[int]int)
	for descriptor, queryTimes := range queryFP {
		referenceTimes, ok := referenceFP[descriptor]
		if !ok {
			continue
		}
		shared++
		for queryTime := range queryTimes {
			for referenceTime := range referenceTimes {
				deltaVotes[queryTime-referenceTime]++
			}
		}
	}
	if shared < 10 {
		t.Fatalf("shifted signal shares only %d descriptors with the reference", shared)
	}

	// The dominant time offset must correspond to the 0.5 s shift:
	// 0.5 * 44100 / (1024 - 512) frames, give or take quantization.
	bestDelta, bestVotes := 0, 0
	for delta, votes := range deltaVotes {
		if votes > bestVotes {
			bestDelta, bestVotes = delta, votes
		}
	}
	wantDelta := int(0.5 * samplingFrequency / float64(params.WindowLength-params.WindowOverlap))
	if bestDelta < wantDelta-3 || bestDelta > wantDelta+3 {
		t.Errorf("dominant delta = %d frames, want about %d", bestDelta, wantDelta)
	}

	// The query must outscore a pure-noise control against the reference.
	noise := make([]float64, samplingFrequency)
	for i := range noise {
		noise[i] = rng.Float64()*2 - 1
	}
	noiseFP, err := FromSignal(noise, samplingFrequency, params)
	if err != nil {
		t.Fatalf("FromSignal(noise): %v", err)
	}

	matchParams := DefaultMatchParams()
	queryScore := Match(queryFP, referenceFP, matchParams)
	noiseScore := Match(noiseFP, referenceFP, matchParams)
	if queryScore <= noiseScore {
		t.Errorf("query score %d does not exceed noise score %d", queryScore, noiseScore)
	}
}
