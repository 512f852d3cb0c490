package internal

import (
	"strings"
	"time"
)

// Track is one queued item.
type Track struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	AddedBy string `json:"addedBy"`
	AddedAt int64  `json:"addedAt"`
}

// TrackInput is a track as submitted by a client.
type TrackInput struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	AddedBy string `json:"addedBy"`
}

// AppendTrack adds a track to the end of the queue. Queue order is
// insertion order and is never rearranged.
func (p *Party) AppendTrack(in TrackInput, id string, now time.Time) (Track, error) {
	url := strings.TrimSpace(in.URL)
	if url == "" {
		return Track{}, ErrInvalidArgument
	}
	t := Track{
		ID:      id,
		URL:     url,
		Title:   strings.TrimSpace(in.Title),
		AddedBy: strings.TrimSpace(in.AddedBy),
		AddedAt: now.UnixMilli(),
	}
	if t.Title == "" {
		t.Title = url
	}
	if t.AddedBy == "" {
		t.AddedBy = defaultGuestName
	}
	p.Queue = append(p.Queue, t)
	return t, nil
}

// RemoveTrack deletes a track by id and repairs the cursor so it keeps
// addressing the same logical track. Removing the current track stops
// playback, clears the skip votes and leaves the cursor on whatever now
// occupies that slot. It reports whether a track was removed.
func (p *Party) RemoveTrack(trackID string) bool {
	index := -1
	for i, t := range p.Queue {
		if t.ID == trackID {
			index = i
			break
		}
	}
	if index == -1 {
		return false
	}

	if index < p.CurrentIndex {
		p.CurrentIndex--
	} else if index == p.CurrentIndex {
		p.Stop()
		p.ClearVotes()
	}

	p.Queue = append(p.Queue[:index], p.Queue[index+1:]...)
	p.clampIndex()
	return true
}

// AdvanceTrack moves the cursor past the current track the way a natural
// completion does, never beyond len(Queue).
func (p *Party) AdvanceTrack(now time.Time) {
	if p.CurrentIndex < len(p.Queue) {
		p.CurrentIndex++
	}
	p.ClearVotes()
	if _, ok := p.CurrentTrack(); ok {
		p.Restart(now)
		return
	}
	p.Stop()
}

// CurrentTrack returns the track under the cursor, if any.
func (p *Party) CurrentTrack() (Track, bool) {
	if p.CurrentIndex < 0 || p.CurrentIndex >= len(p.Queue) {
		return Track{}, false
	}
	return p.Queue[p.CurrentIndex], true
}

// HasNext reports whether a track follows the current one.
func (p *Party) HasNext() bool {
	return p.CurrentIndex < len(p.Queue)-1
}

// clampIndex keeps 0 <= CurrentIndex <= len(Queue).
func (p *Party) clampIndex() {
	if p.CurrentIndex > len(p.Queue) {
		p.CurrentIndex = len(p.Queue)
	}
	if p.CurrentIndex < 0 {
		p.CurrentIndex = 0
	}
}
