// Command xineengine is an example wiring of the engine library: it
// builds the long-lived collaborators (metronom, frame pool, FIFOs,
// decoder dispatchers, workers, video output loop) and runs the
// playback facade until a signal arrives, grounded on
// cmd/prism/main.go's app struct + errgroup + signal-handling shape.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/zsiec/xine-engine/internal/config"
	"github.com/zsiec/xine-engine/internal/decoder"
	"github.com/zsiec/xine-engine/internal/engine"
	"github.com/zsiec/xine-engine/internal/events"
	"github.com/zsiec/xine-engine/internal/fifo"
	"github.com/zsiec/xine-engine/internal/framepool"
	"github.com/zsiec/xine-engine/internal/media"
	"github.com/zsiec/xine-engine/internal/metronom"
	"github.com/zsiec/xine-engine/internal/videoout"
	"github.com/zsiec/xine-engine/internal/worker"
)

const (
	videoFIFOCapacity = 500
	audioFIFOCapacity = 100
	spuFIFOCapacity   = 50
)

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	cfg := config.New()
	cfg.RegisterRange("video.num_buffers", media.NumFrameBuffers, 5, 60,
		"number of video frame buffers", "", 10, nil)

	bus := events.New()
	pub := events.NewPublisher(bus)

	m := metronom.New(nil)
	defer m.Close()

	pool := framepool.New(media.NumFrameBuffers, m, nil)

	videoFIFO := fifo.New(videoFIFOCapacity, func() *media.Packet { return &media.Packet{} })
	audioFIFO := fifo.New(audioFIFOCapacity, func() *media.Packet { return &media.Packet{} })
	spuFIFO := fifo.New(spuFIFOCapacity, func() *media.Packet { return &media.Packet{} })

	videoReg := decoder.NewRegistry[decoder.VideoDecoder]()
	audioReg := decoder.NewRegistry[decoder.AudioDecoder]()
	spuReg := decoder.NewRegistry[decoder.SPUDecoder]()

	// SPU decoders: CEA-608/708 captions via github.com/zsiec/ccx for the
	// closed-caption SPU family, plus the DVD subpicture and teletext
	// decoders for their own families.
	spuReg.Register(media.SPUFamilyCEA608708, decoder.NewCCXSPUDecoder())
	spuReg.Register(media.SPUFamilyDVD, decoder.NewDVDSPUDecoder())
	spuReg.Register(media.SPUFamilyTeletext, decoder.NewTeletextDecoder())

	videoDispatch := decoder.NewVideoDispatcher(videoReg, pool, pub)
	audioSink := audioSinkAdapter{m: m}
	audioDispatch := decoder.NewAudioDispatcher(audioReg, audioSink, pub)
	spuSink := spuSinkAdapter{pool: pool, m: m}
	spuDispatch := decoder.NewSPUDispatcher(spuReg, spuSink, pub)

	finished := worker.NewFinishedTracker(pub)
	videoWork := worker.NewVideoWorker(videoFIFO, videoDispatch, m, nil, finished, pub, nil)
	audioWork := worker.NewAudioWorker(audioFIFO, audioDispatch, m, nil, finished, pub, nil)
	spuWork := worker.NewSPUWorker(spuFIFO, spuDispatch, m, nil, pub, nil)

	videoLoop := videoout.New(pool, videoout.MetronomClock(m), nopDriver{}, nil)

	eng := engine.New(engine.Deps{
		Metronom:    m,
		VideoFIFO:   videoFIFO,
		AudioFIFO:   audioFIFO,
		SPUFIFO:     spuFIFO,
		VideoWorker: videoWork,
		AudioWorker: audioWork,
		SPUWorker:   spuWork,
		VideoLoop:   videoLoop,
		Bus:         bus,
		Config:      cfg,
		Inputs:      nil, // wire concrete input plugins here
		Demuxers:    nil, // wire concrete demuxer plugins here
	})

	if err := eng.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("engine stopped with error", "error", err)
		os.Exit(1)
	}
}

// audioSinkAdapter feeds decoded audio sample counts into the metronom's
// sample-to-VPTS mapping; a real build would also forward the decoded
// bytes to an audio.Driver's buffer, which is outside this core's scope.
type audioSinkAdapter struct{ m *metronom.Metronom }

func (a audioSinkAdapter) PutBuffer(samples []byte, pts int64, numSamples int64) int64 {
	return a.m.GotAudioSamples(pts, numSamples)
}

type spuSinkAdapter struct {
	pool *framepool.Pool
	m    *metronom.Metronom
}

func (s spuSinkAdapter) SPUVPTS(pts, duration int64) int64 {
	return s.m.GotSPUPacket(pts, duration)
}

func (s spuSinkAdapter) SetOverlays(overlays []media.Overlay) {
	s.pool.SetOverlays(overlays)
}

// nopDriver is a placeholder video driver: a real build wires in an
// actual display backend satisfying videoout.Driver.
type nopDriver struct{}

func (nopDriver) UpdateFrameFormat(f *media.Frame)             {}
func (nopDriver) OverlayBlend(f *media.Frame, o media.Overlay) {}
func (nopDriver) DisplayFrame(f *media.Frame)                  {}
func (nopDriver) Capabilities() uint32                         { return 0 }
func (nopDriver) GetProperty(p videoout.Property) int          { return 0 }
func (nopDriver) SetProperty(p videoout.Property, v int) int   { return v }
