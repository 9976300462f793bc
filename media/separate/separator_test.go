package separate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottledSpacesIntermediateCalls(t *testing.T) {
	var calls []int
	fn := throttled(func(pct int, _ string) {
		calls = append(calls, pct)
	}, 50*time.Millisecond)

	fn(1, "a")
	fn(2, "b") // within interval, dropped
	fn(3, "c") // within interval, dropped
	time.Sleep(60 * time.Millisecond)
	fn(4, "d")

	assert.Equal(t, []int{1, 4}, calls)
}

func TestThrottledFinalCallAlwaysPasses(t *testing.T) {
	var calls []int
	fn := throttled(func(pct int, _ string) {
		calls = append(calls, pct)
	}, time.Hour)

	fn(10, "working")
	fn(50, "working") // dropped
	fn(100, "done")   // final, passes despite interval

	assert.Equal(t, []int{10, 100}, calls)
}

func TestThrottledNilFunc(t *testing.T) {
	fn := throttled(nil, time.Second)
	assert.NotPanics(t, func() { fn(50, "noop") })
}

func TestParseVersionOutput(t *testing.T) {
	cases := map[string]string{
		"demucs 4.0.1":         "4.0.1",
		"4.1.0":                "4.1.0",
		"demucs version 4.0.0": "4.0.0",
	}
	for input, want := range cases {
		v, err := parseVersionOutput(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, v.String(), input)
	}
}

func TestParseVersionOutputRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "no version here", "demucs"} {
		_, err := parseVersionOutput(input)
		require.Error(t, err, input)
	}
}

func TestIsSupportedVersion(t *testing.T) {
	v, err := parseVersionOutput("demucs 4.0.0")
	require.NoError(t, err)
	assert.True(t, isSupportedVersion(v))

	v, err = parseVersionOutput("demucs 3.0.1")
	require.NoError(t, err)
	assert.False(t, isSupportedVersion(v))

	v, err = parseVersionOutput("demucs 4.2.0")
	require.NoError(t, err)
	assert.True(t, isSupportedVersion(v))
}

func TestOutputExt(t *testing.T) {
	assert.Equal(t, "mp3", outputExt("/lib/song/original.mp3"))
	assert.Equal(t, "mp3", outputExt("/lib/song/original.MP3"))
	assert.Equal(t, "wav", outputExt("/lib/song/original.wav"))
	assert.Equal(t, "wav", outputExt("/lib/song/original.flac"))
	assert.Equal(t, "wav", outputExt("/lib/song/original.m4a"))
	assert.Equal(t, "wav", outputExt("/lib/song/original"))
}

func TestSelectDevice(t *testing.T) {
	s := &Separator{device: "cpu"}
	assert.Equal(t, "cpu", s.selectDevice())

	s = &Separator{device: "cuda"}
	assert.Equal(t, "cuda", s.selectDevice())

	// auto resolves to a concrete device either way
	s = &Separator{device: "auto"}
	got := s.selectDevice()
	assert.Contains(t, []string{"cpu", "cuda"}, got)
}

func TestPercentPattern(t *testing.T) {
	cases := map[string]string{
		" 42%|████      | 12.3/29.4 [00:05<00:07]": "42",
		"100%|██████████| 29.4/29.4 [00:12<00:00]": "100",
		"  7%|▌         | 2.1/29.4":                "7",
	}
	for line, want := range cases {
		m := percentPattern.FindStringSubmatch(line)
		require.NotNil(t, m, line)
		assert.Equal(t, want, m[1], line)
	}
	assert.Nil(t, percentPattern.FindStringSubmatch("no progress here"))
}
