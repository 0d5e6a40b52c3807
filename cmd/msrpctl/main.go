package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/danmuck/msrpctl/internal/config"
	"github.com/danmuck/msrpctl/internal/logging"
	"github.com/danmuck/msrpctl/internal/manager"
	"github.com/danmuck/msrpctl/internal/observability"
	"github.com/danmuck/msrpctl/internal/protocol"
	"github.com/danmuck/msrpctl/internal/protocol/session"
	"github.com/rs/zerolog/log"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "init":
		err = runInit(os.Args[2:])
	case "listen":
		err = runListen(os.Args[2:])
	case "send":
		err = runSend(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "msrpctl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: msrpctl <init|listen|send> [flags]")
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	output := fs.String("output", "msrpctl.toml", "output path for the settings template")
	force := fs.Bool("force", false, "overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := config.WriteTemplate(*output, *force); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", *output)
	return nil
}

type common struct {
	settings config.Settings
	peer     peerConfig
}

func loadCommon(fs *flag.FlagSet, args []string) (common, error) {
	settingsPath := fs.String("config", "", "settings file (defaults when empty)")
	peerPath := fs.String("peer", "", "peer media file")
	if err := fs.Parse(args); err != nil {
		return common{}, err
	}

	settings := config.DefaultSettings()
	if *settingsPath != "" {
		var err error
		if settings, err = config.LoadSettings(*settingsPath); err != nil {
			return common{}, err
		}
	}
	logging.ConfigureWith(settings.LogConfig())

	peer, err := loadPeerConfig(*peerPath)
	if err != nil {
		return common{}, err
	}
	return common{settings: settings, peer: peer}, nil
}

func runListen(args []string) error {
	fs := flag.NewFlagSet("listen", flag.ContinueOnError)
	admin := fs.Bool("admin", true, "serve the admin HTTP surface")
	c, err := loadCommon(fs, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, err := manager.New(c.settings.ManagerConfig())
	if err != nil {
		return err
	}
	sink := newFileSink(c.peer.OutputDir, stop)
	media := c.peer.Media
	media.Setup = manager.SetupActive
	if _, err := m.CreateSession(media, sink); err != nil {
		return err
	}
	defer m.CloseSession()
	log.Info().Str("path", m.LocalPath()).Str("proto", m.SocketProtocol()).Msg("msrp endpoint listening")

	var srv *observability.Admin
	if *admin {
		srv = observability.NewAdmin(observability.AdminConfig{
			ID:          "msrpctl",
			Addr:        c.settings.Admin.Addr,
			CorsOrigins: c.settings.Admin.CorsOrigins,
			Token:       c.settings.Admin.Token,
			Session: func() (any, bool) {
				s := m.Session()
				if s == nil {
					return nil, false
				}
				return s.Snapshot(), true
			},
			Ready: m.IsEstablished,
		})
		go func() {
			if err := srv.Serve(); err != nil {
				log.Error().Err(err).Msg("admin server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if err := m.Open(ctx); err != nil {
		return err
	}
	log.Info().Msg("peer connected")
	<-ctx.Done()
	return sink.Err()
}

func runSend(args []string) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	file := fs.String("file", "", "file to transfer")
	timeout := fs.Duration("timeout", 2*time.Minute, "overall transfer deadline")
	c, err := loadCommon(fs, args)
	if err != nil {
		return err
	}
	if *file == "" {
		return errors.New("send: -file is required")
	}

	f, err := os.Open(*file)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	m, err := manager.New(c.settings.ManagerConfig())
	if err != nil {
		return err
	}
	if _, err := m.CreateSession(c.peer.Media, progressLog{}); err != nil {
		return err
	}
	defer m.CloseSession()
	if err := m.Open(ctx); err != nil {
		return err
	}
	if c.peer.EmptyChunk {
		if err := m.SendEmptyChunk(ctx); err != nil {
			return fmt.Errorf("empty chunk: %w", err)
		}
	}

	start := time.Now()
	err = m.SendChunks(ctx, f, filepath.Base(*file), c.peer.ContentType, info.Size(), session.FileSharing)
	if err != nil {
		return err
	}
	log.Info().Str("file", *file).Int64("bytes", info.Size()).Dur("took", time.Since(start)).Msg("transfer complete")
	return nil
}

// progressLog reports sender-side callbacks.
type progressLog struct {
	session.NopListener
}

func (progressLog) Progress(current, total int64) {
	log.Debug().Int64("sent", current).Int64("total", total).Msg("progress")
}

func (progressLog) DataTransferred(msgID string) {
	log.Info().Str("msg", msgID).Msg("data transferred")
}

func (progressLog) TransferError(msgID string, err error, ct session.ChunkType) {
	log.Warn().Str("msg", msgID).Str("chunk", ct.String()).Err(err).Msg("transfer error")
}

// fileSink writes each complete incoming message to dir.
type fileSink struct {
	session.NopListener
	dir  string
	stop func()
	errs chan error
}

func newFileSink(dir string, stop func()) *fileSink {
	return &fileSink{dir: dir, stop: stop, errs: make(chan error, 1)}
}

func (s *fileSink) DataReceived(msgID string, data []byte, contentType string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(s.dir, filepath.Base(msgID)+".msg")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	log.Info().Str("msg", msgID).Str("type", contentType).Int("bytes", len(data)).Str("path", path).Msg("message received")
	return nil
}

func (s *fileSink) ReceiveProgress(current, total int64, partial []byte) bool {
	log.Debug().Int64("received", current).Int64("total", total).Msg("receive progress")
	return false
}

func (s *fileSink) Aborted() {
	log.Warn().Msg("peer aborted the message")
}

func (s *fileSink) TransferError(msgID string, err error, ct session.ChunkType) {
	log.Warn().Str("msg", msgID).Str("chunk", ct.String()).Err(err).Msg("transfer error")
	if errors.Is(err, protocol.ErrNetwork) || errors.Is(err, protocol.ErrPayload) {
		select {
		case s.errs <- err:
		default:
		}
		s.stop()
	}
}

// Err returns the error that ended the session, if any.
func (s *fileSink) Err() error {
	select {
	case err := <-s.errs:
		return err
	default:
		return nil
	}
}
