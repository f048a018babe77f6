// Package mpg provides an audio.Player that decodes MP3 assets with
// github.com/hajimehoshi/go-mp3 and plays them through the system output
// device via github.com/ebitengine/oto.
//
// Playback is strictly serial: one asset at a time, each played to
// completion before the next starts, with a polled readiness check. The
// backing temporary file of every asset is released unconditionally after
// its playback attempt, even when decoding or playback failed — transient
// audio files must never outlive their single use.
package mpg

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	mp3 "github.com/hajimehoshi/go-mp3"

	"github.com/voxhollow/voxd/pkg/audio"
	"github.com/voxhollow/voxd/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ audio.Player = (*Player)(nil)

// pollInterval is how often playback completion is polled. go-mp3 gives no
// completion callback, so the player spins on IsPlaying at this cadence.
const pollInterval = 10 * time.Millisecond

// Player implements audio.Player for MP3 assets. It owns the output device
// exclusively; PlaySequential calls are serialized internally.
//
// The underlying oto context is created on first use with the sample rate of
// the first decoded asset (the synthesis backend returns a constant rate).
type Player struct {
	mu     sync.Mutex
	otoCtx *oto.Context
	rate   int
}

// New creates a Player. The output device is not acquired until the first
// PlaySequential call.
func New() *Player {
	return &Player{}
}

// PlaySequential implements audio.Player. Assets are played in slice order;
// each asset's temporary file is released after its playback attempt
// regardless of outcome. The first error encountered is returned once all
// assets have been released.
func (p *Player) PlaySequential(ctx context.Context, assets []*tts.Asset) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for i, asset := range assets {
		if err := ctx.Err(); err != nil {
			// Cancelled: release the remaining assets without playing them.
			releaseAll(assets[i:])
			if firstErr != nil {
				return firstErr
			}
			return fmt.Errorf("mpg: play sequence: %w", err)
		}

		err := p.playOne(ctx, asset)
		if relErr := asset.Release(); relErr != nil && err == nil {
			err = relErr
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// playOne decodes and plays a single asset to completion.
func (p *Player) playOne(ctx context.Context, asset *tts.Asset) error {
	f, err := os.Open(asset.Path())
	if err != nil {
		return fmt.Errorf("mpg: open asset: %w", err)
	}
	defer f.Close()

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return fmt.Errorf("mpg: decode asset %q: %w", asset.Path(), err)
	}

	if err := p.ensureContext(dec.SampleRate()); err != nil {
		return err
	}

	player := p.otoCtx.NewPlayer(dec)
	defer player.Close()

	player.Play()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			// Stop mid-asset; the caller releases the file either way.
			return fmt.Errorf("mpg: playback interrupted: %w", ctx.Err())
		case <-time.After(pollInterval):
		}
	}
	return nil
}

// ensureContext creates the process-wide oto context on first use. go-mp3
// always decodes to 16-bit stereo, so only the sample rate varies.
func (p *Player) ensureContext(sampleRate int) error {
	if p.otoCtx != nil {
		if sampleRate != p.rate {
			return fmt.Errorf("mpg: asset sample rate %d differs from device rate %d", sampleRate, p.rate)
		}
		return nil
	}

	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return fmt.Errorf("mpg: init output device: %w", err)
	}
	<-ready

	p.otoCtx = otoCtx
	p.rate = sampleRate
	return nil
}

// releaseAll releases every asset in the slice. The cancellation error takes
// precedence over release failures.
func releaseAll(assets []*tts.Asset) {
	for _, a := range assets {
		_ = a.Release()
	}
}
