package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet_MatchEachFirmwareFamily(t *testing.T) {
	prompts := Default()

	tests := []struct {
		name      string
		buf       string
		wantIndex int
	}{
		{name: "NPS", buf: "banner\r\nNPS> ", wantIndex: 0},
		{name: "IPS", buf: "banner\r\nIPS> ", wantIndex: 1},
		{name: "NBB", buf: "banner\r\nNBB> ", wantIndex: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := prompts.Match([]byte(tt.buf))
			require.True(t, ok)
			assert.Equal(t, tt.wantIndex, m.Index)
			assert.Equal(t, len(tt.buf), m.End)
			assert.Equal(t, "banner\r\n", tt.buf[:m.Start])
		})
	}
}

func TestSet_MatchNone(t *testing.T) {
	for _, buf := range []string{"", "NPS>", "nps> ", "Password: "} {
		_, ok := Default().Match([]byte(buf))
		assert.False(t, ok, "buffer %q", buf)
	}
}

func TestSet_MatchLeftmost(t *testing.T) {
	m, ok := Default().Match([]byte("IPS> later NPS> "))
	require.True(t, ok)
	assert.Equal(t, 1, m.Index)
	assert.Equal(t, 0, m.Start)
}

func TestSet_MatchTieUsesSetOrder(t *testing.T) {
	s := Set{"A> ", "A"}
	m, ok := s.Match([]byte("xA> "))
	require.True(t, ok)
	assert.Equal(t, 0, m.Index)
	assert.Equal(t, 4, m.End)
}

func TestSet_MatchFromFindsStraddlingPrompt(t *testing.T) {
	s := Default()
	buf := []byte("status...NP")

	_, ok := s.MatchFrom(buf, 0)
	require.False(t, ok)

	searched := len(buf)
	buf = append(buf, []byte("S> ")...)

	m, ok := s.MatchFrom(buf, searched)
	require.True(t, ok)
	assert.Equal(t, 0, m.Index)
	assert.Equal(t, "status...", string(buf[:m.Start]))
}

func TestSet_MatchFromPastEnd(t *testing.T) {
	_, ok := Default().MatchFrom([]byte("NPS> "), 100)
	assert.False(t, ok)
}

func TestDefault_ReturnsCopy(t *testing.T) {
	s := Default()
	s[0] = "changed"
	assert.Equal(t, "NPS> ", Default()[0])
}

func TestSet_String(t *testing.T) {
	s := Default()
	assert.Equal(t, "NBB> ", s.String(2))
	assert.Equal(t, "", s.String(3))
	assert.Equal(t, "", s.String(-1))
}
