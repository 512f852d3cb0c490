package internal

import "time"

// The playback clock has no storage of its own. While playing, the
// position is now - StartedAt; while paused, it is Elapsed.

// Resume starts the clock from the frozen position.
func (p *Party) Resume(now time.Time) {
	p.StartedAt = now.Add(-p.Elapsed)
	p.IsPlaying = true
}

// Pause freezes the clock at the current position.
func (p *Party) Pause(now time.Time) {
	p.Elapsed = p.Position(now)
	p.IsPlaying = false
}

// Seek moves the position. A playing clock keeps running from there.
func (p *Party) Seek(pos time.Duration, now time.Time) {
	if pos < 0 {
		pos = 0
	}
	p.Elapsed = pos
	if p.IsPlaying {
		p.StartedAt = now.Add(-pos)
	}
}

// Restart plays the current track from its beginning.
func (p *Party) Restart(now time.Time) {
	p.Elapsed = 0
	p.StartedAt = now
	p.IsPlaying = true
}

// Stop halts playback and rewinds to the beginning of the track.
func (p *Party) Stop() {
	p.Elapsed = 0
	p.IsPlaying = false
}

// Position returns how far into the current track playback is.
func (p *Party) Position(now time.Time) time.Duration {
	if !p.IsPlaying {
		return p.Elapsed
	}
	if p.StartedAt.IsZero() {
		return 0
	}
	if d := now.Sub(p.StartedAt); d > 0 {
		return d
	}
	return 0
}

// PlaybackState is the playbackUpdate payload for the party.
func (p *Party) PlaybackState(now time.Time) ServerMessagePlaybackUpdatePayload {
	return ServerMessagePlaybackUpdatePayload{
		IsPlaying:    p.IsPlaying,
		StartedAt:    unixMilli(p.StartedAt),
		ElapsedMs:    p.Position(now).Milliseconds(),
		CurrentIndex: p.CurrentIndex,
		ServerTime:   now.UnixMilli(),
	}
}

// SyncState is the periodic drift-correction sample.
func (p *Party) SyncState(now time.Time) ServerMessageSyncPayload {
	return ServerMessageSyncPayload{
		ServerTime:   now.UnixMilli(),
		StartedAt:    unixMilli(p.StartedAt),
		CurrentIndex: p.CurrentIndex,
	}
}
