package engine

import (
	"context"
	"errors"

	"github.com/zsiec/xine-engine/internal/media"
	"github.com/zsiec/xine-engine/internal/metronom"
)

// ErrNoInputPlugin is returned by Play when no registered InputSource
// accepts the MRL.
var ErrNoInputPlugin = errors.New("engine: no input plugin for mrl")

// ErrNoDemuxer is returned by Play when no registered Demuxer recognizes
// the opened input's content.
var ErrNoDemuxer = errors.New("engine: no demuxer for mrl")

// ErrDemuxStartFailed is returned by Play when a recognized demuxer
// fails to start producing packets.
var ErrDemuxStartFailed = errors.New("engine: demuxer failed to start")

// Play implements spec.md §4.10's play(mrl, start_pos, start_time): it
// stops any current stream, finds an input plugin and a demuxer for mrl,
// and on success posts CONTROL_START to all three FIFOs, starts the
// demuxer, and transitions to StatusPlay at normal speed. On failure the
// engine stays in StatusStop and a diagnostic OpenFailed event is
// posted, mirroring xine_play's printf-and-stay-stopped behavior.
func (e *Engine) Play(ctx context.Context, mrl string, startPos, startTime int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status == StatusPlay {
		e.stopLocked()
	}

	input := e.findInputLocked(mrl)
	if input == nil {
		e.log.Warn("no input plugin for mrl", "mrl", mrl)
		e.pub.OpenFailed(mrl)
		return ErrNoInputPlugin
	}

	demux := e.findDemuxerLocked(input, mrl)
	if demux == nil {
		e.log.Warn("no demuxer for mrl", "mrl", mrl)
		input.Close()
		e.pub.OpenFailed(mrl)
		return ErrNoDemuxer
	}

	e.postControlAll(media.ControlStart)

	if err := demux.Start(ctx, e.videoFIFO, e.audioFIFO, e.spuFIFO, startPos, startTime); err != nil || demux.GetStatus() != DemuxOK {
		e.log.Warn("demuxer failed to start", "mrl", mrl, "error", err)
		input.Close()
		e.status = StatusStop
		e.pub.OpenFailed(mrl)
		return ErrDemuxStartFailed
	}

	e.status = StatusPlay
	e.curMRL = mrl
	e.curInput = input
	e.curDemux = demux

	e.metro.SetSpeed(metronom.SpeedNormal)
	e.speed = metronom.SpeedNormal

	e.log.Info("play", "mrl", mrl, "start_pos", startPos, "start_time", startTime)
	return nil
}

func (e *Engine) findInputLocked(mrl string) InputSource {
	for _, in := range e.inputs {
		if in.Open(mrl) {
			return in
		}
	}
	return nil
}

func (e *Engine) findDemuxerLocked(input InputSource, mrl string) Demuxer {
	for _, d := range e.demuxers {
		if d.Probe(input, mrl) {
			return d
		}
	}
	return nil
}

// Stop implements spec.md §4.10's stop(): resets speed to normal, stops
// the current demuxer, closes the current input, and transitions to
// StatusStop. A no-op if already stopped, matching xine_stop's "ignored"
// early return.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

func (e *Engine) stopLocked() {
	if e.status == StatusStop {
		return
	}

	e.metro.SetSpeed(metronom.SpeedNormal)
	e.speed = metronom.SpeedNormal
	e.status = StatusStop

	if e.curDemux != nil {
		e.curDemux.Stop()
		e.curDemux = nil
	}
	if e.curInput != nil {
		e.curInput.Close()
		// curInput is kept (not nilled) so Eject still works after Stop,
		// matching xine_stop's comment on this exact point.
	}

	e.log.Info("stop")
}

// Seek implements spec.md §4.10's seek(pos): the original reuses play()
// itself for seeking, passing the new position share through start_pos;
// we do the same; pos is a share of the stream's length in [0, 65535],
// matching xine_get_current_position's units.
func (e *Engine) Seek(ctx context.Context, pos int64) error {
	e.mu.Lock()
	if e.status != StatusPlay {
		e.mu.Unlock()
		return nil
	}
	mrl := e.curMRL
	e.mu.Unlock()
	return e.Play(ctx, mrl, pos, 0)
}

// Pause implements spec.md §4.10's pause(bool): Pause is modeled as Play
// at speed zero, so pausing sets speed to metronom.SpeedPause and
// unpausing restores metronom.SpeedNormal.
func (e *Engine) Pause(paused bool) {
	if paused {
		e.SetSpeed(metronom.SpeedPause)
	} else {
		e.SetSpeed(metronom.SpeedNormal)
	}
}

// SetSpeed implements spec.md §4.10's set_speed(s), clamped to
// [SpeedPause, speedFast4] as xine_set_speed does.
func (e *Engine) SetSpeed(speed int) {
	if speed < metronom.SpeedPause {
		speed = metronom.SpeedPause
	}
	if speed > speedFast4 {
		speed = speedFast4
	}

	e.mu.Lock()
	e.metro.SetSpeed(speed)
	e.speed = speed
	e.mu.Unlock()
}

// SetAVOffset implements spec.md §4.10's set_av_offset(ticks).
func (e *Engine) SetAVOffset(offsetPTS int64) {
	e.metro.SetAVOffset(offsetPTS)
}

// GetAVOffset returns the current manual A/V sync adjustment.
func (e *Engine) GetAVOffset() int64 {
	return e.metro.GetAVOffset()
}

// SelectAudioChannel implements spec.md §4.10's select_audio_channel(i):
// posts a CONTROL_AUDIO_CHANNEL packet so the audio worker's track map
// picks it up on its own goroutine rather than being mutated directly
// from the caller's.
func (e *Engine) SelectAudioChannel(channel int) {
	e.mu.Lock()
	e.audioChannel = channel
	e.mu.Unlock()
	e.postChannelControl(e.audioFIFO, media.ControlAudioChannel, channel)
}

// GetAudioChannel returns the last channel index passed to
// SelectAudioChannel.
func (e *Engine) GetAudioChannel() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.audioChannel
}

// SelectSPUChannel implements spec.md §4.10's select_spu_channel(i); -1
// disables subtitles, matching xine_select_spu_channel's clamp.
func (e *Engine) SelectSPUChannel(channel int) {
	if channel < -1 {
		channel = -1
	}
	e.mu.Lock()
	e.spuChannel = channel
	e.mu.Unlock()
	e.postChannelControl(e.spuFIFO, media.ControlSPUChannel, channel)
}

// GetSPUChannel returns the last channel index passed to
// SelectSPUChannel.
func (e *Engine) GetSPUChannel() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.spuChannel
}

// Eject implements spec.md §4.10's eject(): only meaningful while
// stopped, matching xine_eject's guard against ejecting an input still
// in use by a running demuxer.
func (e *Engine) Eject() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusStop || e.curInput == nil {
		return false
	}
	return e.curInput.Eject()
}
