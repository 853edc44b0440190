package subsystems

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
)

// Mixer holds the audio channel volumes. Playback itself belongs to the host
// audio backend; the mixer only tracks and clamps levels.
type Mixer struct {
	mu    sync.RWMutex
	music float64
	sfx   float64
	voice float64

	running atomic.Bool
}

func NewMixer() *Mixer {
	return &Mixer{music: 1, sfx: 1, voice: 1}
}

func (m *Mixer) SetMusicVolume(v float64) {
	m.set(&m.music, "music", v)
}

func (m *Mixer) SetSfxVolume(v float64) {
	m.set(&m.sfx, "sfx", v)
}

func (m *Mixer) SetVoiceVolume(v float64) {
	m.set(&m.voice, "voice", v)
}

// Volumes returns the music, sfx and voice levels.
func (m *Mixer) Volumes() (music, sfx, voice float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.music, m.sfx, m.voice
}

func (m *Mixer) set(field *float64, channel string, v float64) {
	c := clampVolume(v)
	if c != v {
		slog.Debug("clamped volume", "channel", channel, "requested", v, "volume", c)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	*field = c
}

func (m *Mixer) Start(ctx context.Context) error {
	m.running.Store(true)
	defer m.running.Store(false)

	slog.InfoContext(ctx, "audio mixer running")
	<-ctx.Done()
	return nil
}

// Probe reports ready once the mixer is running.
func (m *Mixer) Probe(ctx context.Context) (bool, error) {
	return m.running.Load(), nil
}

func clampVolume(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
